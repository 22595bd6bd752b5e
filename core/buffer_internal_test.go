package core

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/overlaygfx/gfx"
)

// shortBuffer reads back fewer bytes than it was created with
type shortBuffer struct {
	gfx.Buffer
	data []byte
}

func (b shortBuffer) Read() ([]byte, error) {
	return b.data, nil
}

func TestBufferReadSizeMismatch(t *testing.T) {
	c := qt.New(t)

	b := &Buffer[uint32]{raw: shortBuffer{data: make([]byte, 6)}, len: 2}
	_, err := b.Read()
	c.Assert(err, qt.ErrorMatches, "buffer read 6 bytes, expected 8")

	b = &Buffer[uint32]{raw: shortBuffer{data: make([]byte, 12)}, len: 2}
	_, err = b.Read()
	c.Assert(err, qt.ErrorMatches, "buffer read 12 bytes, expected 8")

	b = &Buffer[uint32]{raw: shortBuffer{data: []byte{1, 0, 0, 0, 2, 0, 0, 0}}, len: 2}
	got, err := b.Read()
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []uint32{1, 2})
}
