// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return ErrFileFormat
// when it is not.
func Open(r io.ReaderAt) (*Archive, error) {
	magic := make([]byte, MagicLength)
	if num, err := r.ReadAt(magic, 0); num < MagicLength || !bytes.Equal(magic, Magic[:]) {
		return nil, errors.Wrap(ErrFileFormat, "magic")
	} else if err != nil && err != io.EOF {
		return nil, err
	}

	headerSizeBytes := make([]byte, HeaderSizeLength)
	if num, _ := r.ReadAt(headerSizeBytes, MagicLength); num < HeaderSizeLength {
		return nil, errors.Wrap(ErrFileFormat, "header size")
	}
	headerSize := binaryToInt64(headerSizeBytes)
	if headerSize <= 0 || headerSize > 1<<30 {
		return nil, errors.Wrapf(ErrFileFormat, "header size %d", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if num, _ := r.ReadAt(headerBytes, MagicLength+HeaderSizeLength); int64(num) < headerSize {
		return nil, errors.Wrap(ErrFileFormat, "truncated header")
	}

	ar := &Archive{
		reader:     r,
		dataOffset: MagicLength + HeaderSizeLength + headerSize,
	}
	if err := gobDecode(&ar.header, headerBytes); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}
	return ar, nil
}

// OpenFile memory maps the archive at path
func OpenFile(path string) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := Open(r)
	if err != nil {
		r.Close()
		return nil, errors.Wrap(err, path)
	}
	ar.closer = r
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader     io.ReaderAt
	closer     io.Closer
	header     Header
	dataOffset int64
}

// Header returns the header the archive was built with
func (a *Archive) Header() Header {
	return a.header
}

// Files returns the names of all files in the archive
func (a *Archive) Files() []string {
	names := make([]string, len(a.header.Index))
	for idx, e := range a.header.Index {
		names[idx] = e.Name
	}
	return names
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	if int64(len(data)) != r.entry.Size {
		return nil, errors.Wrapf(ErrFileFormat, "%s is %d bytes, index says %d", name, len(data), r.entry.Size)
	}
	return data, nil
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.header.Entry(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.dataOffset+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:  entry,
		reader: lz4.NewReader(section),
	}, nil
}

// Close releases the memory mapping of archives opened with OpenFile
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry  IndexEntry
	reader io.Reader
}

// Size returns the decompressed size of the file
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.reader.Read(p)
}
