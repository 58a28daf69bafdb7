package page

import (
	"encoding/binary"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func cridPage(channel int64, name string, bitrate int64) *Page {
	p := New("CRIUSF_DIR_STREAM")
	p.SetInt("fmtver", Int32, 16777984)
	p.SetString("filename", name)
	p.SetInt("filesize", Int32, 0x1000)
	p.SetInt("stmid", Int32, 0x40534656)
	p.SetInt("chno", Int16, channel)
	p.SetInt("avbps", Int32, bitrate)
	return p
}

func TestUpdateReplacesByName(t *testing.T) {
	t.Parallel()

	p := New("TEST")
	p.SetInt("a", Int32, 1).SetString("b", "x").SetInt("a", Int64, 2)

	require.Equal(t, 2, p.Len())
	f, ok := p.Get("a")
	require.True(t, ok)
	require.Equal(t, Int64, f.Type)
	require.Equal(t, int64(2), f.Int())
	require.Equal(t, "a", p.Fields()[0].Name)
}

func TestGetters(t *testing.T) {
	t.Parallel()

	p := New("TEST")
	p.SetInt("neg", Int16, -1).SetUint("big", Uint64, 1<<40).SetString("s", "val")

	v, err := p.Int("neg")
	require.NoError(t, err)
	require.Equal(t, int64(-1), v)

	v, err = p.Int("big")
	require.NoError(t, err)
	require.Equal(t, int64(1<<40), v)

	_, err = p.Int("s")
	require.Error(t, err)

	_, err = p.Int("missing")
	require.ErrorIs(t, err, ErrNoField)

	s, err := p.Str("s")
	require.NoError(t, err)
	require.Equal(t, "val", s)
}

func TestPackUnpackSinglePage(t *testing.T) {
	t.Parallel()

	p := New("VIDEO_HDRINFO")
	p.SetUint("u8", Uint8, 0xFE)
	p.SetInt("i8", Int8, -3)
	p.SetUint("u16", Uint16, 0xBEEF)
	p.SetInt("i16", Int16, -300)
	p.SetUint("u32", Uint32, 0xDEADBEEF)
	p.SetInt("i32", Int32, -70000)
	p.SetUint("u64", Uint64, 1<<63)
	p.SetInt("i64", Int64, -1<<40)
	p.SetFloat("f32", Float32, 1.5)
	p.SetFloat("f64", Float64, -2.25)
	p.SetString("str", "movie.ivf")
	p.SetBytes("blob", []byte{1, 2, 3, 4, 5})

	data, err := Pack([]*Page{p}, "")
	require.NoError(t, err)
	require.Equal(t, "@UTF", string(data[:4]))
	require.Zero(t, len(data)%8)
	require.Equal(t, len(data)-8, int(binary.BigEndian.Uint32(data[4:])))

	pages, err := Unpack(data, "")
	require.NoError(t, err)
	require.Len(t, pages, 1)

	got := pages[0]
	require.Equal(t, "VIDEO_HDRINFO", got.Name)
	require.Equal(t, p.Len(), got.Len())
	for i, f := range p.Fields() {
		g := got.Fields()[i]
		require.Equal(t, f.Name, g.Name)
		require.Equal(t, f.Type, g.Type)
		require.Equal(t, f.Value(), g.Value(), f.Name)
	}
}

func TestPackUnpackMultiPage(t *testing.T) {
	t.Parallel()

	pages := []*Page{
		cridPage(-1, "movie.usm", 0),
		cridPage(0, "movie.ivf", 1000),
		cridPage(1, "movie.adx", 2000),
	}

	data, err := Pack(pages, "UTF-8")
	require.NoError(t, err)

	rowWidth := binary.BigEndian.Uint16(data[0x1A:])
	// filename, chno and avbps differ, the rest is shared.
	require.Equal(t, uint16(4+2+4), rowWidth)

	got, err := Unpack(data, "UTF-8")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, p := range pages {
		name, err := got[i].Str("filename")
		require.NoError(t, err)
		want, _ := p.Str("filename")
		require.Equal(t, want, name)

		ch, err := got[i].Int("chno")
		require.NoError(t, err)
		require.Equal(t, int64(i-1), ch)

		ver, err := got[i].Int("fmtver")
		require.NoError(t, err)
		require.Equal(t, int64(16777984), ver)
	}
}

func TestPackEmpty(t *testing.T) {
	t.Parallel()

	data, err := Pack(nil, "")
	require.NoError(t, err)

	pages, err := Unpack(data, "")
	require.NoError(t, err)
	require.Empty(t, pages)
}

func TestPackSchemaMismatch(t *testing.T) {
	t.Parallel()

	a := New("T").SetInt("x", Int32, 1)
	b := New("T").SetInt("y", Int32, 1)
	_, err := Pack([]*Page{a, b}, "")
	require.ErrorIs(t, err, ErrSchemaMismatch)

	c := New("T").SetInt("x", Int32, 1).SetInt("z", Int32, 1)
	_, err = Pack([]*Page{a, c}, "")
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestShiftJISStrings(t *testing.T) {
	t.Parallel()

	p := New("CRIUSF_DIR_STREAM").SetString("filename", "ムービー.usm")

	data, err := Pack([]*Page{p}, "shift_jis")
	require.NoError(t, err)

	pages, err := Unpack(data, "shift_jis")
	require.NoError(t, err)
	name, err := pages[0].Str("filename")
	require.NoError(t, err)
	require.Equal(t, "ムービー.usm", name)
}

func TestUnknownEncoding(t *testing.T) {
	t.Parallel()

	require.Error(t, CheckEncoding("no-such-encoding"))
	require.NoError(t, CheckEncoding("UTF-8"))
	require.NoError(t, CheckEncoding("euc-jp"))
}

func TestUnpackCorrupt(t *testing.T) {
	t.Parallel()

	valid, err := Pack([]*Page{cridPage(0, "a.ivf", 1)}, "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		target error
	}{
		{
			name:   "short",
			mutate: func(b []byte) []byte { return b[:0x10] },
			target: ErrInvalidSignature,
		},
		{
			name:   "bad_signature",
			mutate: func(b []byte) []byte { b[0] = 'X'; return b },
			target: ErrInvalidSignature,
		},
		{
			name: "size_past_end",
			mutate: func(b []byte) []byte {
				binary.BigEndian.PutUint32(b[4:], uint32(len(b)*2))
				return b
			},
			target: ErrCorruptTable,
		},
		{
			name: "bad_column_type",
			mutate: func(b []byte) []byte {
				b[0x20] = storagePerRow | 0x0F
				return b
			},
			target: ErrCorruptTable,
		},
		{
			name: "too_many_rows",
			mutate: func(b []byte) []byte {
				binary.BigEndian.PutUint32(b[0x1C:], 1000)
				return b
			},
			target: ErrCorruptTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := tt.mutate(append([]byte(nil), valid...))
			_, err := Unpack(data, "")
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestSeekInfo(t *testing.T) {
	t.Parallel()

	pages := []*Page{NewSeekInfo(0x40, 0), NewSeekInfo(0x1000, 30), New("OTHER")}
	require.Equal(t, []int{0, 30}, Keyframes(pages))
	require.Nil(t, Keyframes(nil))

	ofs, err := pages[1].Int(SeekOffsetKey)
	require.NoError(t, err)
	require.Equal(t, int64(0x1000), ofs)
}

func TestClone(t *testing.T) {
	t.Parallel()

	p := NewSeekInfo(1, 2)
	c := p.Clone()
	c.SetInt(SeekOffsetKey, Int64, 99)

	ofs, _ := p.Int(SeekOffsetKey)
	require.Equal(t, int64(1), ofs)
}

func TestMarshalJSON(t *testing.T) {
	t.Parallel()

	p := New("T").SetInt("chno", Int16, -1).SetBytes("b", []byte{0xAB})
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"name":"T","fields":[{"name":"chno","type":"int16","value":-1},{"name":"b","type":"bytes","value":"ab"}]}`,
		string(data))
}
