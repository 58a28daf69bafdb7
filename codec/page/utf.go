package page

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/encoding"
)

// @UTF table layout. Offsets stored in the table are relative to utfBase.
const (
	utfHeaderSize = 0x20
	utfBase       = 0x08
	utfAlign      = 8
	nullString    = "<NULL>"

	storageMask     = 0xF0
	typeMask        = 0x0F
	storageZero     = 0x10
	storageConstant = 0x30
	storagePerRow   = 0x50

	maxConstantRows = 1 << 16
)

var utfSignature = []byte("@UTF")

// Errors returned by the table codec.
var (
	ErrInvalidSignature = errors.New("page: invalid @UTF signature")
	ErrCorruptTable     = errors.New("page: corrupt @UTF table")
	ErrSchemaMismatch   = errors.New("page: pages of one table must share the same fields")
)

type column struct {
	name     string
	typ      ElementType
	storage  byte
	constant Field
}

// Pack serializes pages into one @UTF table. Every page must carry the same fields in the
// same order; the table takes its name from the first page. A field holding the same value
// on every page of a multi-page table is stored once in the column schema.
func Pack(pages []*Page, enc string) ([]byte, error) {
	codec, err := lookupEncoding(enc)
	if err != nil {
		return nil, err
	}

	var name string
	var cols []column
	if len(pages) > 0 {
		name = pages[0].Name
		first := pages[0].fields
		cols = make([]column, len(first))
		for i, f := range first {
			cols[i] = column{name: f.Name, typ: f.Type, storage: storagePerRow, constant: f}
			if len(pages) > 1 {
				cols[i].storage = storageConstant
			}
		}
		for _, p := range pages[1:] {
			if len(p.fields) != len(first) {
				return nil, fmt.Errorf("%w: %s has %d fields, want %d", ErrSchemaMismatch, p.Name, len(p.fields), len(first))
			}
			for i, f := range p.fields {
				if f.Name != first[i].Name || f.Type != first[i].Type {
					return nil, fmt.Errorf("%w: %s.%s", ErrSchemaMismatch, p.Name, f.Name)
				}
				if !f.equal(first[i]) {
					cols[i].storage = storagePerRow
				}
			}
		}
	}

	tw := &tableWriter{
		strings: newStringTable(codec),
		data:    new(bytes.Buffer),
	}
	if _, err = tw.strings.add(nullString); err != nil {
		return nil, err
	}
	nameOffset, err := tw.strings.add(name)
	if err != nil {
		return nil, err
	}

	schema := new(bytes.Buffer)
	rowWidth := 0
	for _, c := range cols {
		schema.WriteByte(c.storage | byte(c.typ))
		var ofs uint32
		if ofs, err = tw.strings.add(c.name); err != nil {
			return nil, err
		}
		_ = binary.Write(schema, binary.BigEndian, ofs)
		if c.storage == storageConstant {
			if err = tw.writeValue(schema, c.constant); err != nil {
				return nil, err
			}
		} else {
			rowWidth += c.typ.width()
		}
	}

	rows := new(bytes.Buffer)
	for _, p := range pages {
		for i, c := range cols {
			if c.storage != storagePerRow {
				continue
			}
			if err = tw.writeValue(rows, p.fields[i]); err != nil {
				return nil, err
			}
		}
	}

	if len(cols) > math.MaxUint16 || rowWidth > math.MaxUint16 {
		return nil, fmt.Errorf("page: table %s is too wide", name)
	}

	rowsOffset := utfHeaderSize - utfBase + schema.Len()
	stringsOffset := rowsOffset + rows.Len()
	dataOffset := stringsOffset + tw.strings.buf.Len()
	total := utfBase + dataOffset + tw.data.Len()
	if rem := total % utfAlign; rem != 0 {
		total += utfAlign - rem
	}
	if rowsOffset > math.MaxUint16 {
		return nil, fmt.Errorf("page: table %s schema is too large", name)
	}

	out := make([]byte, total)
	copy(out, utfSignature)
	binary.BigEndian.PutUint32(out[0x04:], uint32(total-utfBase))
	binary.BigEndian.PutUint16(out[0x08:], 0) // version
	binary.BigEndian.PutUint16(out[0x0A:], uint16(rowsOffset))
	binary.BigEndian.PutUint32(out[0x0C:], uint32(stringsOffset))
	binary.BigEndian.PutUint32(out[0x10:], uint32(dataOffset))
	binary.BigEndian.PutUint32(out[0x14:], nameOffset)
	binary.BigEndian.PutUint16(out[0x18:], uint16(len(cols)))
	binary.BigEndian.PutUint16(out[0x1A:], uint16(rowWidth))
	binary.BigEndian.PutUint32(out[0x1C:], uint32(len(pages))) //nolint:gosec
	copy(out[utfHeaderSize:], schema.Bytes())
	copy(out[utfBase+rowsOffset:], rows.Bytes())
	copy(out[utfBase+stringsOffset:], tw.strings.buf.Bytes())
	copy(out[utfBase+dataOffset:], tw.data.Bytes())
	return out, nil
}

type stringTable struct {
	enc     *encoding.Encoder
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newStringTable(codec encoding.Encoding) *stringTable {
	return &stringTable{
		enc:     codec.NewEncoder(),
		offsets: make(map[string]uint32),
	}
}

func (st *stringTable) add(s string) (uint32, error) {
	if ofs, ok := st.offsets[s]; ok {
		return ofs, nil
	}
	raw, err := st.enc.Bytes([]byte(s))
	if err != nil {
		return 0, fmt.Errorf("page: encode %q: %w", s, err)
	}
	ofs := uint32(st.buf.Len()) //nolint:gosec
	st.buf.Write(raw)
	st.buf.WriteByte(0)
	st.offsets[s] = ofs
	return ofs, nil
}

type tableWriter struct {
	strings *stringTable
	data    *bytes.Buffer
}

func (tw *tableWriter) writeValue(w *bytes.Buffer, f Field) error {
	var b [8]byte
	switch f.Type {
	case Uint8:
		w.WriteByte(uint8(f.u))
	case Int8:
		w.WriteByte(byte(int8(f.i)))
	case Uint16:
		binary.BigEndian.PutUint16(b[:], uint16(f.u))
		w.Write(b[:2])
	case Int16:
		binary.BigEndian.PutUint16(b[:], uint16(int16(f.i))) //nolint:gosec
		w.Write(b[:2])
	case Uint32:
		binary.BigEndian.PutUint32(b[:], uint32(f.u))
		w.Write(b[:4])
	case Int32:
		binary.BigEndian.PutUint32(b[:], uint32(int32(f.i))) //nolint:gosec
		w.Write(b[:4])
	case Uint64:
		binary.BigEndian.PutUint64(b[:], f.u)
		w.Write(b[:8])
	case Int64:
		binary.BigEndian.PutUint64(b[:], uint64(f.i)) //nolint:gosec
		w.Write(b[:8])
	case Float32:
		binary.BigEndian.PutUint32(b[:], math.Float32bits(float32(f.f)))
		w.Write(b[:4])
	case Float64:
		binary.BigEndian.PutUint64(b[:], math.Float64bits(f.f))
		w.Write(b[:8])
	case String:
		ofs, err := tw.strings.add(f.s)
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint32(b[:], ofs)
		w.Write(b[:4])
	case Bytes:
		binary.BigEndian.PutUint32(b[:], uint32(tw.data.Len())) //nolint:gosec
		binary.BigEndian.PutUint32(b[4:], uint32(len(f.b)))    //nolint:gosec
		w.Write(b[:8])
		tw.data.Write(f.b)
	default:
		return fmt.Errorf("page: field %s has unknown type %v", f.Name, f.Type)
	}
	return nil
}

// Unpack parses one @UTF table into pages, one per row.
func Unpack(data []byte, enc string) ([]*Page, error) {
	codec, err := lookupEncoding(enc)
	if err != nil {
		return nil, err
	}
	if len(data) < utfHeaderSize || !bytes.Equal(data[:4], utfSignature) {
		return nil, ErrInvalidSignature
	}

	end := utfBase + int(binary.BigEndian.Uint32(data[0x04:]))
	rowsOffset := utfBase + int(binary.BigEndian.Uint16(data[0x0A:]))
	stringsOffset := utfBase + int(binary.BigEndian.Uint32(data[0x0C:]))
	dataOffset := utfBase + int(binary.BigEndian.Uint32(data[0x10:]))
	nameOffset := int(binary.BigEndian.Uint32(data[0x14:]))
	numColumns := int(binary.BigEndian.Uint16(data[0x18:]))
	rowWidth := int(binary.BigEndian.Uint16(data[0x1A:]))
	numRows := int(binary.BigEndian.Uint32(data[0x1C:]))

	if end > len(data) || rowsOffset < utfHeaderSize || rowsOffset > stringsOffset ||
		stringsOffset > dataOffset || dataOffset > end {
		return nil, fmt.Errorf("%w: offsets out of range", ErrCorruptTable)
	}
	if rowsOffset+numRows*rowWidth > stringsOffset || (rowWidth == 0 && numRows > maxConstantRows) {
		return nil, fmt.Errorf("%w: %d rows of %d bytes do not fit", ErrCorruptTable, numRows, rowWidth)
	}

	tr := &tableReader{
		dec:     codec.NewDecoder(),
		strings: data[stringsOffset:dataOffset],
		data:    data[dataOffset:end],
	}
	name, err := tr.str(nameOffset)
	if err != nil {
		return nil, err
	}

	cols := make([]column, numColumns)
	pos := utfHeaderSize
	for i := range cols {
		if pos+5 > rowsOffset {
			return nil, fmt.Errorf("%w: column schema truncated", ErrCorruptTable)
		}
		flag := data[pos]
		c := column{typ: ElementType(flag & typeMask), storage: flag & storageMask}
		if !c.typ.Valid() {
			return nil, fmt.Errorf("%w: column %d has unknown type %#x", ErrCorruptTable, i, flag)
		}
		if c.name, err = tr.str(int(binary.BigEndian.Uint32(data[pos+1:]))); err != nil {
			return nil, err
		}
		pos += 5

		switch c.storage {
		case storageZero:
			c.constant = Field{Name: c.name, Type: c.typ}
		case storageConstant:
			if c.constant, err = tr.value(data[:rowsOffset], pos, c.name, c.typ); err != nil {
				return nil, err
			}
			pos += c.typ.width()
		case storagePerRow:
		default:
			return nil, fmt.Errorf("%w: column %s has unknown storage %#x", ErrCorruptTable, c.name, flag)
		}
		cols[i] = c
	}

	pages := make([]*Page, numRows)
	rows := data[:stringsOffset]
	for r := range pages {
		p := &Page{Name: name, fields: make([]Field, 0, len(cols))}
		pos = rowsOffset + r*rowWidth
		rowEnd := pos + rowWidth
		for _, c := range cols {
			if c.storage != storagePerRow {
				p.fields = append(p.fields, c.constant)
				continue
			}
			if pos+c.typ.width() > rowEnd {
				return nil, fmt.Errorf("%w: row %d overflows its width", ErrCorruptTable, r)
			}
			f, err := tr.value(rows, pos, c.name, c.typ)
			if err != nil {
				return nil, err
			}
			p.fields = append(p.fields, f)
			pos += c.typ.width()
		}
		pages[r] = p
	}
	return pages, nil
}

type tableReader struct {
	dec     *encoding.Decoder
	strings []byte
	data    []byte
}

func (tr *tableReader) str(ofs int) (string, error) {
	if ofs < 0 || ofs >= len(tr.strings) {
		return "", fmt.Errorf("%w: string offset %#x out of range", ErrCorruptTable, ofs)
	}
	raw := tr.strings[ofs:]
	if n := bytes.IndexByte(raw, 0); n >= 0 {
		raw = raw[:n]
	}
	s, err := tr.dec.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("page: decode string: %w", err)
	}
	return string(s), nil
}

func (tr *tableReader) value(buf []byte, pos int, name string, typ ElementType) (f Field, err error) {
	if pos < 0 || pos+typ.width() > len(buf) {
		err = fmt.Errorf("%w: value of %s out of range", ErrCorruptTable, name)
		return
	}
	b := buf[pos:]
	f = Field{Name: name, Type: typ}
	switch typ {
	case Uint8:
		f.u = uint64(b[0])
	case Int8:
		f.i = int64(int8(b[0])) //nolint:gosec
	case Uint16:
		f.u = uint64(binary.BigEndian.Uint16(b))
	case Int16:
		f.i = int64(int16(binary.BigEndian.Uint16(b))) //nolint:gosec
	case Uint32:
		f.u = uint64(binary.BigEndian.Uint32(b))
	case Int32:
		f.i = int64(int32(binary.BigEndian.Uint32(b))) //nolint:gosec
	case Uint64:
		f.u = binary.BigEndian.Uint64(b)
	case Int64:
		f.i = int64(binary.BigEndian.Uint64(b)) //nolint:gosec
	case Float32:
		f.f = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	case Float64:
		f.f = math.Float64frombits(binary.BigEndian.Uint64(b))
	case String:
		f.s, err = tr.str(int(binary.BigEndian.Uint32(b)))
	case Bytes:
		ofs := int(binary.BigEndian.Uint32(b))
		size := int(binary.BigEndian.Uint32(b[4:]))
		if ofs+size > len(tr.data) {
			err = fmt.Errorf("%w: blob of %s out of range", ErrCorruptTable, name)
			return
		}
		f.b = bytes.Clone(tr.data[ofs : ofs+size])
	}
	return
}
