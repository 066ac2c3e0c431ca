package schema

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// encodeColumn writes one Column in the CreateTableMsg's big-endian layout,
// mirroring wireReader.column in reverse; used only to build test fixtures.
func encodeColumn(buf *bytes.Buffer, c Column) {
	buf.WriteByte(uint8(c.Type))
	_ = binary.Write(buf, binary.BigEndian, c.ColID)
	_ = binary.Write(buf, binary.BigEndian, c.Bytes)
}

func encodeStr16(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func buildNormalCreateMsg(uid uint64, tid uint32, name string, cols []Column) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(uint8(KindNormal))
	_ = binary.Write(buf, binary.BigEndian, uid)
	_ = binary.Write(buf, binary.BigEndian, tid)
	_ = binary.Write(buf, binary.BigEndian, uint32(1)) // version
	_ = binary.Write(buf, binary.BigEndian, uint16(len(cols)))
	_ = binary.Write(buf, binary.BigEndian, uint16(0)) // numTags
	_ = binary.Write(buf, binary.BigEndian, uint32(0)) // tagDataLen
	encodeStr16(buf, name)
	for _, c := range cols {
		encodeColumn(buf, c)
	}
	return buf.Bytes()
}

func buildChildCreateMsg(uid uint64, tid uint32, name string, rowCols, tagCols []Column, superName string, superUID uint64, tagData []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(uint8(KindChild))
	_ = binary.Write(buf, binary.BigEndian, uid)
	_ = binary.Write(buf, binary.BigEndian, tid)
	_ = binary.Write(buf, binary.BigEndian, uint32(1))
	_ = binary.Write(buf, binary.BigEndian, uint16(len(rowCols)))
	_ = binary.Write(buf, binary.BigEndian, uint16(len(tagCols)))
	_ = binary.Write(buf, binary.BigEndian, uint32(len(tagData)))
	encodeStr16(buf, name)
	for _, c := range rowCols {
		encodeColumn(buf, c)
	}
	_ = binary.Write(buf, binary.BigEndian, uint32(1)) // tag schema version
	encodeStr16(buf, superName)
	_ = binary.Write(buf, binary.BigEndian, superUID)
	for _, c := range tagCols {
		encodeColumn(buf, c)
	}
	buf.Write(tagData)
	return buf.Bytes()
}

func TestDecodeCreateTableMsgNormal(t *testing.T) {
	cols := []Column{{ColID: 0, Type: ColTimestamp, Bytes: 8}, {ColID: 1, Type: ColInt, Bytes: 4}}
	msg := buildNormalCreateMsg(42, 7, "sensors", cols)

	dec, err := DecodeCreateTableMsg(msg)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if dec.Kind != KindNormal || dec.UID != 42 || dec.TID != 7 || dec.Name != "sensors" {
		t.Fatalf("unexpected decode: %+v", dec)
	}
	if dec.Schema == nil || dec.Schema.NCols() != 2 {
		t.Fatalf("expected 2-column schema, got %+v", dec.Schema)
	}
	if dec.TagSchema != nil {
		t.Fatalf("expected no tag schema for a normal table")
	}
}

func TestDecodeCreateTableMsgChildSeedsSuperSchema(t *testing.T) {
	rowCols := []Column{{ColID: 0, Type: ColTimestamp, Bytes: 8}}
	tagCols := []Column{{ColID: 10, Type: ColNChar, Bytes: 8}}
	tagData := make([]byte, 0)
	tagData = binary.BigEndian.AppendUint16(tagData, 4)
	tagData = append(tagData, []byte("zone")...)

	msg := buildChildCreateMsg(200, 2, "meter-1", rowCols, tagCols, "meters", 100, tagData)

	dec, err := DecodeCreateTableMsg(msg)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if dec.Kind != KindChild {
		t.Fatalf("expected KindChild, got %v", dec.Kind)
	}
	if dec.Schema == nil || dec.Schema.NCols() != 1 {
		t.Fatalf("expected the row schema to seed the implicit super, got %+v", dec.Schema)
	}
	if dec.TagSchema == nil || dec.TagSchema.NCols() != 1 {
		t.Fatalf("expected a 1-column tag schema, got %+v", dec.TagSchema)
	}
	if dec.SuperName != "meters" || dec.SuperUID != 100 {
		t.Fatalf("unexpected super identity: %+v", dec)
	}
	v, ok := dec.TagValues.Get(10)
	if !ok || string(v) != "zone" {
		t.Fatalf("expected tag value zone, got %q ok=%v", v, ok)
	}
}

func TestDecodeCreateTableMsgTruncated(t *testing.T) {
	msg := buildNormalCreateMsg(1, 1, "x", []Column{{ColID: 0, Type: ColInt, Bytes: 4}})
	_, err := DecodeCreateTableMsg(msg[:len(msg)-2])
	if err == nil {
		t.Fatal("expected an error decoding a truncated message")
	}
}

func TestSchemaHistoryByVersion(t *testing.T) {
	h := NewHistory(2)
	h.Append(NewBuilder(1).AddColumn(0, ColInt, 4).Build())
	h.Append(NewBuilder(2).AddColumn(0, ColInt, 4).Build())
	h.Append(NewBuilder(3).AddColumn(0, ColInt, 4).Build())

	if _, ok := h.ByVersion(1); ok {
		t.Fatal("expected version 1 to have been evicted")
	}
	if s, ok := h.ByVersion(2); !ok || s.Version != 2 {
		t.Fatalf("expected version 2 retained, got %+v ok=%v", s, ok)
	}
	if s := h.Newest(); s == nil || s.Version != 3 {
		t.Fatalf("expected newest version 3, got %+v", s)
	}
}
