package soft

import (
	"time"

	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// CreateSwapchain implements gfx.SurfaceDevice with off-screen images
func (d *Device) CreateSwapchain(format gfx.Format, size uint32, previous gfx.Swapchain) (gfx.Swapchain, error) {
	if !d.cfg.Surface {
		return nil, errors.New("soft: device was created without a surface")
	}
	if format == gfx.FormatUndefined {
		format = d.cfg.SurfaceFormat
	}
	if size < 2 {
		size = 2
	}

	d.mutex.Lock()
	extent := d.surface
	d.mutex.Unlock()

	sc := &Swapchain{
		device: d,
		format: format,
		extent: extent,
	}
	for idx := uint32(0); idx < size; idx++ {
		sc.images = append(sc.images, &Image{
			device: d,
			info: gfx.ImageInfo{
				Extent: extent,
				Format: format,
				Usage:  gfx.ImageUsageColorAttachment | gfx.ImageUsageTransferSrc,
			},
			pixels:  make([]byte, int(extent.Width*extent.Height)*format.Size()),
			foreign: true,
		})
	}

	if old, ok := previous.(*Swapchain); ok {
		old.retired = true
	}

	d.mutex.Lock()
	d.swapchain = sc
	d.mutex.Unlock()
	d.created()
	return sc, nil
}

// Resize changes the surface extent, making the current swapchain out of date
func (d *Device) Resize(extent gfx.Extent2D) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.surface = extent
	if d.swapchain != nil {
		d.swapchain.retired = true
	}
}

// Swapchain cycles through its images in order
type Swapchain struct {
	device   *Device
	format   gfx.Format
	extent   gfx.Extent2D
	images   []*Image
	next     int
	presents []int
	retired  bool
	released bool
}

// Format implements interface
func (s *Swapchain) Format() gfx.Format {
	return s.format
}

// Extent implements interface
func (s *Swapchain) Extent() gfx.Extent2D {
	return s.extent
}

// Images implements interface
func (s *Swapchain) Images() []gfx.Image {
	images := make([]gfx.Image, len(s.images))
	for idx, img := range s.images {
		images[idx] = img
	}
	return images
}

// Acquire implements interface
func (s *Swapchain) Acquire(timeout time.Duration) (int, error) {
	s.device.mutex.Lock()
	defer s.device.mutex.Unlock()
	if s.released {
		return 0, gfx.ErrReleased
	}
	if s.retired {
		return 0, gfx.ErrOutOfDate
	}
	idx := s.next
	s.next = (s.next + 1) % len(s.images)
	return idx, nil
}

// Present implements interface
func (s *Swapchain) Present(index int) error {
	s.device.mutex.Lock()
	defer s.device.mutex.Unlock()
	if s.retired {
		return gfx.ErrOutOfDate
	}
	if index < 0 || index >= len(s.images) {
		return errors.Errorf("soft: present of image %d out of %d", index, len(s.images))
	}
	if layout := s.images[index].layout; layout != gfx.LayoutPresentSrc {
		return errors.Errorf("soft: present of an image in layout %s", layout)
	}
	s.presents = append(s.presents, index)
	s.device.stats.Presents++
	return nil
}

// Presented returns the indices of presented images, in order
func (s *Swapchain) Presented() []int {
	s.device.mutex.Lock()
	defer s.device.mutex.Unlock()
	return append([]int(nil), s.presents...)
}

// Release implements interface
func (s *Swapchain) Release() {
	if s.released {
		return
	}
	s.released = true
	s.device.destroyed()
}
