package core

import (
	"github.com/devblok/overlaygfx/gfx"
)

// Image is a 2D pixel surface along with the layout
// that work recorded so far leaves it in.
type Image struct {
	ctx      *Context
	raw      gfx.Image
	view     gfx.ImageView
	layout   gfx.ImageLayout
	imported bool
	owned    bool
	refs
}

func newImage(ctx *Context, raw gfx.Image) *Image {
	img := &Image{
		ctx:    ctx,
		raw:    raw,
		layout: gfx.LayoutUndefined,
		owned:  true,
	}
	img.init()
	return img
}

// WrapImage adopts an image created elsewhere, like a swapchain image.
// Releasing the result leaves raw alone.
func WrapImage(ctx *Context, raw gfx.Image, layout gfx.ImageLayout) *Image {
	img := newImage(ctx, raw)
	img.layout = layout
	img.owned = false
	return img
}

// Raw returns the backend image
func (i *Image) Raw() gfx.Image {
	return i.raw
}

// View returns a view over the whole image, creating it on first use
func (i *Image) View() gfx.ImageView {
	if i.view == nil {
		view, err := i.ctx.device.CreateImageView(i.raw)
		if err != nil {
			fatal(err, "Failed to create image view")
		}
		i.view = view
	}
	return i.view
}

// Extent returns the dimensions of the image
func (i *Image) Extent() gfx.Extent2D {
	return i.raw.Info().Extent
}

// Format returns the pixel format of the image
func (i *Image) Format() gfx.Format {
	return i.raw.Info().Format
}

// Layout returns the layout the image is left in by recorded work
func (i *Image) Layout() gfx.ImageLayout {
	return i.layout
}

// Imported reports whether the image memory is shared by another process
func (i *Image) Imported() bool {
	return i.imported
}

// Retain adds a reference
func (i *Image) Retain() *Image {
	i.retain()
	return i
}

// Release drops a reference, freeing the image with the last one
func (i *Image) Release() {
	if !i.release() {
		return
	}
	if i.view != nil {
		i.view.Release()
	}
	if i.owned {
		i.raw.Release()
	}
}
