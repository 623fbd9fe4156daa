package tonemap

import (
	"image"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/tmo"
	"golang.org/x/image/draw"
)

// PerformFunc builds a one-shot tone mapping operator from the
// mdouchement/hdr/tmo family (or anything shaped like one).
type PerformFunc func(img hdr.Image) tmo.ToneMappingOperator

// Library wraps a PerformFunc so that it obeys the Operator contract:
// non-finite input is rejected, negative values are floored at zero, and
// the result comes back as 8-bit RGBA.
type Library struct {
	name string
	new  PerformFunc
}

func NewLibrary(name string, f PerformFunc) *Library { return &Library{name: name, new: f} }

func (l *Library) Name() string { return l.name }

func (l *Library) Tonemap(img hdr.Image) (*image.RGBA, error) {
	ch, err := readChannels(l.name, img)
	if err != nil {
		return nil, err
	}

	// The library operators divide by the scene range; feed an all-black
	// image straight through instead.
	if ch.maxValue() <= 0 {
		return blackImage(ch), nil
	}

	ldr := l.new(ch).Perform()

	out := image.NewRGBA(image.Rect(0, 0, ch.Dx(), ch.Dy()))
	draw.Draw(out, out.Bounds(), ldr, ldr.Bounds().Min, draw.Src)
	return out, nil
}
