package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/go-faker/faker/v4"
	"github.com/hupe1980/virtualizer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name    string            `faker:"name"`
	Email   string            `faker:"email"`
	Amount  float64           `faker:"amount"`
	Count   int64             `faker:"boundary_start=1, boundary_end=1000"`
	Tags    []string          `faker:"slice_len=4"`
	Columns map[string]string `faker:"map_len=3"`
}

type pageData struct {
	Number int
	Rows   []row
}

func fakePage(t *testing.T, rows int) *pageData {
	t.Helper()
	p := &pageData{Number: rows, Rows: make([]row, rows)}
	for i := range p.Rows {
		require.NoError(t, faker.FakeData(&p.Rows[i]))
	}
	return p
}

func allCodecs() []Codec {
	return []Codec{JSON{}, GoJSON{}, MsgPack{}}
}

func TestCodec_RoundTrip(t *testing.T) {
	in := fakePage(t, 8)

	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal(in)
			require.NoError(t, err)

			var out pageData
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in, &out)
		})
	}
}

func TestCodec_ByName(t *testing.T) {
	for _, c := range allCodecs() {
		got, ok := ByName(c.Name())
		require.True(t, ok)
		assert.Equal(t, c.Name(), got.Name())
	}

	_, ok := ByName("protobuf")
	assert.False(t, ok)
}

func TestMustMarshal(t *testing.T) {
	b := MustMarshal(nil, map[string]int{"a": 1})
	assert.NotEmpty(t, b)

	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}

func TestSerializer_RoundTrip(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			s := NewSerializer(c)
			ctx := model.NewContext()
			in := fakePage(t, 4)
			obj := model.NewObject(ctx, in)

			var buf bytes.Buffer
			require.NoError(t, s.WriteData(obj, &buf))
			assert.Same(t, in, obj.Data(), "writing leaves the object untouched")

			obj.RemoveVirtualData()
			require.NoError(t, s.ReadData(obj, &buf))
			assert.Equal(t, in, obj.Data())
		})
	}
}

func TestSerializer_DefaultCodec(t *testing.T) {
	s := NewSerializer(nil)
	assert.Equal(t, "msgpack", s.Codec().Name())
}

func TestSerializer_NoVirtualData(t *testing.T) {
	obj := model.NewObject[pageData](model.NewContext(), nil)

	err := NewSerializer(nil).WriteData(obj, io.Discard)
	assert.ErrorIs(t, err, ErrNoVirtualData)
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestSerializer_Errors(t *testing.T) {
	boom := errors.New("boom")
	obj := model.NewObject(model.NewContext(), fakePage(t, 1))

	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			s := NewSerializer(c)
			assert.ErrorIs(t, s.WriteData(obj, failingWriter{err: boom}), boom)

			before := obj.Data()
			assert.Error(t, s.ReadData(obj, bytes.NewReader([]byte{0xc1, 0xff, 0x00})))
			assert.Same(t, before, obj.Data(), "failed reads leave the object untouched")
		})
	}
}
