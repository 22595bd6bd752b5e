// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestAddConcurrently(t *testing.T) {
	c := qt.New(t)

	builder, err := NewBuilder(Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	c.Assert(err, qt.IsNil)
	defer builder.Close()

	var wg sync.WaitGroup
	for _, name := range []string{"b", "a", "c"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			c.Check(builder.Add(name, strings.NewReader(strings.Repeat(name, 100))), qt.IsNil)
		}(name)
	}
	wg.Wait()
	c.Assert(builder.files, qt.HasLen, 3)

	err = builder.Add("a", strings.NewReader("again"))
	c.Assert(err, qt.ErrorMatches, "file a added twice")
	c.Assert(builder.files, qt.HasLen, 3)

	var buf bytes.Buffer
	written, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(written, qt.Equals, int64(buf.Len()))

	// the index is sorted and offsets follow each other
	ar, err := Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	index := ar.Header().Index
	c.Assert(ar.Files(), qt.DeepEquals, []string{"a", "b", "c"})
	c.Assert(index[0].Offset, qt.Equals, int64(0))
	c.Assert(index[1].Offset, qt.Equals, index[0].CompressedSize)
	c.Assert(index[2].Offset, qt.Equals, index[1].Offset+index[1].CompressedSize)
	c.Assert(index[2].Size, qt.Equals, int64(100))
}

func TestCloseRemovesTemporaryFiles(t *testing.T) {
	c := qt.New(t)

	builder, err := NewBuilder(Header{})
	c.Assert(err, qt.IsNil)
	c.Assert(builder.Add("x", strings.NewReader("x")), qt.IsNil)
	c.Assert(builder.Close(), qt.IsNil)

	_, err = os.Stat(builder.tempDir)
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}
