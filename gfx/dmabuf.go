// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Fourcc is a DRM four-character pixel format code.
type Fourcc uint32

// Four-character codes emitted by capture sources.
const (
	DrmFormatABGR8888 Fourcc = 'A' | 'B'<<8 | '2'<<16 | '4'<<24
	DrmFormatXBGR8888 Fourcc = 'X' | 'B'<<8 | '2'<<16 | '4'<<24
	DrmFormatARGB8888 Fourcc = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
	DrmFormatXRGB8888 Fourcc = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
)

func (f Fourcc) String() string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

// FourccFormat maps a four-character code to the format images
// imported with it use.
func FourccFormat(code Fourcc) (Format, bool) {
	switch code {
	case DrmFormatABGR8888, DrmFormatXBGR8888:
		return FormatR8G8B8A8Unorm, true
	case DrmFormatARGB8888, DrmFormatXRGB8888:
		return FormatB8G8R8A8Unorm, true
	}
	return FormatUndefined, false
}

// MaxPlanes is the most planes a frame descriptor carries.
const MaxPlanes = 4

// NoFd marks a plane without a shared file descriptor.
const NoFd = -1

// DmabufPlane is one memory plane of a shared frame. The zero value
// carries no file descriptor, planes sharing one come from NewDmabufPlane.
type DmabufPlane struct {
	// fd is the descriptor plus one
	fd int

	Offset   uint32
	Stride   uint32
	Modifier uint64
}

// NewDmabufPlane describes a plane shared through fd. A negative fd,
// like NoFd, gives a plane without one.
func NewDmabufPlane(fd int, offset, stride uint32, modifier uint64) DmabufPlane {
	p := DmabufPlane{
		Offset:   offset,
		Stride:   stride,
		Modifier: modifier,
	}
	if fd >= 0 {
		p.fd = fd + 1
	}
	return p
}

// Fd returns the shared file descriptor and whether the plane has one.
func (p DmabufPlane) Fd() (int, bool) {
	if p.fd <= 0 {
		return NoFd, false
	}
	return p.fd - 1, true
}

// HasFd reports whether the plane carries a file descriptor.
func (p DmabufPlane) HasFd() bool {
	_, ok := p.Fd()
	return ok
}

// DmabufFrame describes a frame shared by a capture source.
type DmabufFrame struct {
	Width     uint32
	Height    uint32
	Fourcc    Fourcc
	NumPlanes int
	Planes    [MaxPlanes]DmabufPlane
}
