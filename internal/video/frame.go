package video

import (
	"fmt"
	"image"
	"image/color"
)

// Frame is one decoded video frame in packed RGB24 layout, the pixel
// format the decoder and encoder exchange with ffmpeg.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*3),
	}
}

// Clone returns a deep copy. Annotation always happens on a clone so
// the decoded frame itself is never mutated.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// ToImage converts the frame into a standalone RGBA image for drawing.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i := 0; i < f.Width*f.Height; i++ {
		img.Pix[i*4+0] = f.Pix[i*3+0]
		img.Pix[i*4+1] = f.Pix[i*3+1]
		img.Pix[i*4+2] = f.Pix[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// FromImage converts an image back into the packed RGB24 layout.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	if rgba, ok := img.(*image.RGBA); ok {
		for i := 0; i < f.Width*f.Height; i++ {
			f.Pix[i*3+0] = rgba.Pix[i*4+0]
			f.Pix[i*3+1] = rgba.Pix[i*4+1]
			f.Pix[i*3+2] = rgba.Pix[i*4+2]
		}
		return f
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			f.Pix[i+0] = c.R
			f.Pix[i+1] = c.G
			f.Pix[i+2] = c.B
			i += 3
		}
	}
	return f
}

func (f *Frame) validateAgainst(width, height int) error {
	if f.Width != width || f.Height != height {
		return fmt.Errorf("frame is %dx%d, expected %dx%d", f.Width, f.Height, width, height)
	}
	if len(f.Pix) != width*height*3 {
		return fmt.Errorf("frame buffer is %d bytes, expected %d", len(f.Pix), width*height*3)
	}
	return nil
}
