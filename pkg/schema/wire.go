package schema

import (
	"encoding/binary"
	"fmt"
)

// TableKind mirrors the tagged table-kind variant of the data model. It is
// shared by the wire decoder here and by pkg/table, which is the only
// consumer that attaches behavior to it.
type TableKind uint8

const (
	KindNormal TableKind = iota + 1
	KindSuper
	KindChild
	KindStream
)

func (k TableKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindSuper:
		return "super"
	case KindChild:
		return "child"
	case KindStream:
		return "stream"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DecodedCreate is the host-byte-order result of decoding a wire
// CreateTableMsg. It carries exactly the fields §4.1's TableCfg needs;
// pkg/tablecfg turns this into a TableCfg.
type DecodedCreate struct {
	Kind      TableKind
	UID       uint64
	TID       uint32
	Name      string
	Schema    *Schema
	TagSchema *Schema
	SuperName string
	SuperUID  uint64
	TagValues *TagRow
	SQL       string
}

// ErrBadWireMessage is returned for any malformed CreateTableMsg/
// UpdateTagValMsg payload: truncation, an inconsistent length field, or an
// unrecognized table kind.
var ErrBadWireMessage = fmt.Errorf("schema: malformed wire message")

type wireReader struct {
	buf []byte
	off int
}

func (r *wireReader) need(n int) error {
	if r.off+n > len(r.buf) {
		return ErrBadWireMessage
	}
	return nil
}

func (r *wireReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *wireReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *wireReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *wireReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *wireReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *wireReader) str16() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *wireReader) column() (Column, error) {
	typ, err := r.u8()
	if err != nil {
		return Column{}, err
	}
	colID, err := r.u16()
	if err != nil {
		return Column{}, err
	}
	width, err := r.u16()
	if err != nil {
		return Column{}, err
	}
	return Column{ColID: colID, Type: ColType(typ), Bytes: width}, nil
}

// DecodeCreateTableMsg decodes a CreateTableMsg payload from network byte
// order. See spec §6 for the field list. The layout read here is: u8 kind,
// u64 uid, u32 tid, u32 version, u16 numCols, u16 numTags, u32 tagDataLen,
// str16 name, numCols columns; when numTags > 0, u32 tag version, str16
// superName, u64 superUid, numTags columns and tagDataLen bytes of tag
// values; for a Stream, a trailing str16 sql. A column is u8 type, u16
// colID, u16 bytes.
func DecodeCreateTableMsg(buf []byte) (*DecodedCreate, error) {
	r := wireReader{buf: buf}

	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	kind := TableKind(kindByte)
	if kind < KindNormal || kind > KindStream {
		return nil, ErrBadWireMessage
	}

	uid, err := r.u64()
	if err != nil {
		return nil, err
	}
	tid, err := r.u32()
	if err != nil {
		return nil, err
	}
	version, err := r.u32()
	if err != nil {
		return nil, err
	}
	numCols, err := r.u16()
	if err != nil {
		return nil, err
	}
	numTags, err := r.u16()
	if err != nil {
		return nil, err
	}
	tagDataLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	name, err := r.str16()
	if err != nil {
		return nil, err
	}

	dec := &DecodedCreate{Kind: kind, UID: uid, TID: tid, Name: name}

	// The row-column block is always present, even for a Child: it is the
	// schema the implicitly-created Super adopts (spec §4.1, §4.2).
	b := NewBuilder(int32(version))
	for i := uint16(0); i < numCols; i++ {
		c, err := r.column()
		if err != nil {
			return nil, err
		}
		b.AddColumn(c.ColID, c.Type, c.Bytes)
	}
	dec.Schema = b.Build()

	if numTags > 0 {
		tversion, err := r.u32()
		if err != nil {
			return nil, err
		}
		superName, err := r.str16()
		if err != nil {
			return nil, err
		}
		superUID, err := r.u64()
		if err != nil {
			return nil, err
		}
		tb := NewBuilder(int32(tversion))
		cols := make([]Column, 0, numTags)
		for i := uint16(0); i < numTags; i++ {
			c, err := r.column()
			if err != nil {
				return nil, err
			}
			tb.AddColumn(c.ColID, c.Type, c.Bytes)
			cols = append(cols, c)
		}
		dec.TagSchema = tb.Build()
		dec.SuperName = superName
		dec.SuperUID = superUID

		if tagDataLen > 0 {
			tagData, err := r.bytes(int(tagDataLen))
			if err != nil {
				return nil, err
			}
			row, err := decodeTagValues(cols, tagData)
			if err != nil {
				return nil, err
			}
			dec.TagValues = row
		}
	}

	if kind == KindStream {
		sql, err := r.str16()
		if err != nil {
			return nil, err
		}
		dec.SQL = sql
	}

	return dec, nil
}

// decodeTagValues walks a contiguous tag-value block, one value per column
// in schema order. Fixed-width columns consume exactly Bytes; variable
// columns carry a u16 length prefix that must be strictly less than Bytes.
func decodeTagValues(cols []Column, data []byte) (*TagRow, error) {
	r := wireReader{buf: data}
	values := make(map[uint16][]byte, len(cols))
	for _, c := range cols {
		if c.Type.IsVarData() {
			n, err := r.u16()
			if err != nil {
				return nil, err
			}
			if int(n) >= int(c.Bytes) {
				return nil, ErrBadWireMessage
			}
			v, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			values[c.ColID] = append([]byte{}, v...)
		} else {
			v, err := r.bytes(int(c.Bytes))
			if err != nil {
				return nil, err
			}
			values[c.ColID] = append([]byte{}, v...)
		}
	}
	return NewTagRow(values), nil
}

// DecodedTagUpdate is the host-byte-order result of decoding an
// UpdateTagValMsg payload.
type DecodedTagUpdate struct {
	UID      uint64
	TID      uint32
	TVersion int32
	ColID    uint16
	Type     ColType
	Width    uint16
	Data     []byte
}

// DecodeUpdateTagValMsg decodes an UpdateTagValMsg payload from network
// byte order.
func DecodeUpdateTagValMsg(buf []byte) (*DecodedTagUpdate, error) {
	r := wireReader{buf: buf}

	uid, err := r.u64()
	if err != nil {
		return nil, err
	}
	tid, err := r.u32()
	if err != nil {
		return nil, err
	}
	tversion, err := r.u32()
	if err != nil {
		return nil, err
	}
	colID, err := r.u16()
	if err != nil {
		return nil, err
	}
	typ, err := r.u8()
	if err != nil {
		return nil, err
	}
	width, err := r.u16()
	if err != nil {
		return nil, err
	}
	dataLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	data, err := r.bytes(int(dataLen))
	if err != nil {
		return nil, err
	}

	return &DecodedTagUpdate{
		UID:      uid,
		TID:      tid,
		TVersion: int32(tversion),
		ColID:    colID,
		Type:     ColType(typ),
		Width:    width,
		Data:     append([]byte{}, data...),
	}, nil
}
