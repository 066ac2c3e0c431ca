// Package actionlog implements the action-log adapter of spec §4.4: it
// turns each registry mutation into a length-prefixed, checksummed record
// and decodes such records back into Table data on open. Appending is done
// by the registry's action sink; there is no in-memory segment or pending
// action list, and the persistence driver's sink writes each record
// straight to the META log.
//
// The wire shape uses length-prefixed binary fields written with
// encoding/binary and a trailing CRC32 checksum. A record carries a typed
// action plus an encoded Table, not a flat key/value entry.
package actionlog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/table"
)

// Kind distinguishes the two mutations the action log records.
type Kind uint8

const (
	UpdateMeta Kind = iota + 1
	DropMeta
)

func (k Kind) String() string {
	switch k {
	case UpdateMeta:
		return "UpdateMeta"
	case DropMeta:
		return "DropMeta"
	default:
		return fmt.Sprintf("actionlog.Kind(%d)", uint8(k))
	}
}

// Record is one entry of the pending action list: actionObj{act, uid} plus
// actionCont{payload, checksum} from spec §4.4. Payload is the encoded
// Table for UpdateMeta and empty for DropMeta. Seq is assigned by the
// persistence driver's clock, not by the registry, so the log's append
// order is recoverable even if the underlying file is ever split into
// segments.
type Record struct {
	Act     Kind
	UID     uint64
	Seq     uint64
	Payload []byte
}

// Encode serializes r to the on-disk layout: u8 act, u64 uid, u64 seq, u32
// len, payload, u32 checksum (crc32 over act+uid+seq+len+payload). All
// integers little-endian, per spec §4.4/§6.
func Encode(r Record) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(r.Act))
	_ = binary.Write(buf, binary.LittleEndian, r.UID)
	_ = binary.Write(buf, binary.LittleEndian, r.Seq)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(r.Payload)))
	buf.Write(r.Payload)
	sum := crc32.ChecksumIEEE(buf.Bytes())
	_ = binary.Write(buf, binary.LittleEndian, sum)
	return buf.Bytes()
}

// Decode parses a record previously produced by Encode, verifying the
// trailing checksum. A checksum mismatch or truncated buffer is reported as
// dberrors.Corruption (spec §7's "Corruption during restore aborts restore
// of that record").
func Decode(buf []byte) (Record, error) {
	const op = "actionlog.Decode"
	if len(buf) < 1+8+8+4+4 {
		return Record{}, dberrors.Corruptionf(op, fmt.Errorf("record too short: %d bytes", len(buf)))
	}

	content := buf[:len(buf)-4]
	wantSum := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	gotSum := crc32.ChecksumIEEE(content)
	if gotSum != wantSum {
		return Record{}, dberrors.Corruptionf(op, fmt.Errorf("checksum mismatch: got %x want %x", gotSum, wantSum))
	}

	r := bytes.NewReader(content)
	var actByte byte
	if err := binary.Read(r, binary.LittleEndian, &actByte); err != nil {
		return Record{}, dberrors.Corruptionf(op, err)
	}
	var uid uint64
	if err := binary.Read(r, binary.LittleEndian, &uid); err != nil {
		return Record{}, dberrors.Corruptionf(op, err)
	}
	var seq uint64
	if err := binary.Read(r, binary.LittleEndian, &seq); err != nil {
		return Record{}, dberrors.Corruptionf(op, err)
	}
	var plen uint32
	if err := binary.Read(r, binary.LittleEndian, &plen); err != nil {
		return Record{}, dberrors.Corruptionf(op, err)
	}
	payload := make([]byte, plen)
	if _, err := r.Read(payload); err != nil && plen > 0 {
		return Record{}, dberrors.Corruptionf(op, err)
	}

	return Record{Act: Kind(actByte), UID: uid, Seq: seq, Payload: payload}, nil
}

// binWriter accumulates the little-endian fixed-width fields of the Table
// encoding.
type binWriter struct {
	buf bytes.Buffer
}

func (w *binWriter) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *binWriter) u16(v uint16) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *binWriter) u32(v uint32) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *binWriter) i32(v int32)  { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *binWriter) u64(v uint64) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }

func (w *binWriter) str16(s string) {
	w.u16(uint16(len(s)))
	w.buf.WriteString(s)
}

func (w *binWriter) bytes16(b []byte) {
	w.u16(uint16(len(b)))
	w.buf.Write(b)
}

func (w *binWriter) schema(s *schema.Schema) {
	w.i32(s.Version)
	w.u16(uint16(s.NCols()))
	for i := 0; i < s.NCols(); i++ {
		c, _ := s.ColAt(i)
		w.u8(uint8(c.Type))
		w.u16(c.ColID)
		w.u16(c.Bytes)
	}
}

// binReader mirrors binWriter for decoding.
type binReader struct {
	buf []byte
	off int
}

func (r *binReader) need(n int) error {
	if r.off+n > len(r.buf) {
		return dberrors.ErrFileCorrupted
	}
	return nil
}

func (r *binReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *binReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *binReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *binReader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *binReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *binReader) bytesN(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := append([]byte{}, r.buf[r.off:r.off+n]...)
	r.off += n
	return v, nil
}

func (r *binReader) str16() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.bytesN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *binReader) bytes16() ([]byte, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	return r.bytesN(int(n))
}

func (r *binReader) schema() (*schema.Schema, error) {
	version, err := r.i32()
	if err != nil {
		return nil, err
	}
	numCols, err := r.u16()
	if err != nil {
		return nil, err
	}
	b := schema.NewBuilder(version)
	for i := uint16(0); i < numCols; i++ {
		typ, err := r.u8()
		if err != nil {
			return nil, err
		}
		colID, err := r.u16()
		if err != nil {
			return nil, err
		}
		width, err := r.u16()
		if err != nil {
			return nil, err
		}
		b.AddColumn(colID, schema.ColType(typ), width)
	}
	return b.Build(), nil
}

// EncodeTable serializes t to the Table encoding of spec §4.4:
//
//	u8 kind, name, u64 uid, i32 tid
//	  if Child:   u64 superUid, kvRow tagValues
//	  else:       u8 numSchemas, numSchemas × schema
//	              if Super:  tagSchema
//	              if Stream: string sql
func EncodeTable(t *table.Table) []byte {
	w := &binWriter{}
	w.u8(uint8(t.Kind()))
	w.str16(t.Name())
	w.u64(t.UID())
	w.i32(int32(t.TID()))

	switch t.Kind() {
	case schema.KindChild:
		w.u64(t.SuperUID())
		encodeTagRow(w, t.TagRow())
	default:
		versions := t.SchemaHistory()
		w.u8(uint8(len(versions)))
		for _, s := range versions {
			w.schema(s)
		}
		if t.Kind() == schema.KindSuper {
			w.schema(t.TagSchema())
		}
		if t.Kind() == schema.KindStream {
			w.str16(t.SQL())
		}
	}
	return w.buf.Bytes()
}

func encodeTagRow(w *binWriter, row *schema.TagRow) {
	if row == nil {
		w.u16(0)
		return
	}
	ids := row.ColumnIDs()
	w.u16(uint16(len(ids)))
	for _, id := range ids {
		v, _ := row.Get(id)
		w.u16(id)
		w.bytes16(v)
	}
}

func decodeTagRow(r *binReader) (*schema.TagRow, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	values := make(map[uint16][]byte, n)
	for i := uint16(0); i < n; i++ {
		id, err := r.u16()
		if err != nil {
			return nil, err
		}
		v, err := r.bytes16()
		if err != nil {
			return nil, err
		}
		values[id] = v
	}
	return schema.NewTagRow(values), nil
}

// DecodedTable is the result of decoding an EncodeTable payload: enough to
// build a tablecfg.Cfg and construct a table.Table via table.New. Decoding
// does not set a Child's Super back-link; that is established by the
// reorg pass (spec §4.4, §4.5).
//
// Schemas carries every retained history entry, oldest first, so a restore
// can rebuild the table's full bounded history instead of only its newest
// version; Schema is its last (newest) entry, kept for callers that only
// care about the current shape.
type DecodedTable struct {
	Kind      schema.TableKind
	Name      string
	UID       uint64
	TID       uint32
	SuperUID  uint64
	TagValues *schema.TagRow
	Schemas   []*schema.Schema
	Schema    *schema.Schema
	TagSchema *schema.Schema
	SQL       string
}

// DecodeTable parses a Table encoding produced by EncodeTable.
func DecodeTable(buf []byte) (*DecodedTable, error) {
	const op = "actionlog.DecodeTable"
	r := &binReader{buf: buf}

	kindByte, err := r.u8()
	if err != nil {
		return nil, dberrors.Corruptionf(op, err)
	}
	kind := schema.TableKind(kindByte)

	name, err := r.str16()
	if err != nil {
		return nil, dberrors.Corruptionf(op, err)
	}
	uid, err := r.u64()
	if err != nil {
		return nil, dberrors.Corruptionf(op, err)
	}
	tidSigned, err := r.i32()
	if err != nil {
		return nil, dberrors.Corruptionf(op, err)
	}

	dec := &DecodedTable{Kind: kind, Name: name, UID: uid, TID: uint32(tidSigned)}

	if kind == schema.KindChild {
		superUID, err := r.u64()
		if err != nil {
			return nil, dberrors.Corruptionf(op, err)
		}
		dec.SuperUID = superUID
		row, err := decodeTagRow(r)
		if err != nil {
			return nil, dberrors.Corruptionf(op, err)
		}
		dec.TagValues = row
		return dec, nil
	}

	numSchemas, err := r.u8()
	if err != nil {
		return nil, dberrors.Corruptionf(op, err)
	}
	dec.Schemas = make([]*schema.Schema, 0, numSchemas)
	for i := uint8(0); i < numSchemas; i++ {
		s, err := r.schema()
		if err != nil {
			return nil, dberrors.Corruptionf(op, err)
		}
		dec.Schemas = append(dec.Schemas, s)
	}
	if len(dec.Schemas) > 0 {
		dec.Schema = dec.Schemas[len(dec.Schemas)-1]
	}
	if kind == schema.KindSuper {
		ts, err := r.schema()
		if err != nil {
			return nil, dberrors.Corruptionf(op, err)
		}
		dec.TagSchema = ts
	}
	if kind == schema.KindStream {
		sql, err := r.str16()
		if err != nil {
			return nil, dberrors.Corruptionf(op, err)
		}
		dec.SQL = sql
	}
	return dec, nil
}
