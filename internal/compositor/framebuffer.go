// Package compositor implements the host-side window manager and
// framebuffer compositor that HolyC client processes connect to over
// internal/ipc.
package compositor

import "image/color"

// InternalW and InternalH are the fixed dimensions of the compositor's
// 8-bit indexed internal framebuffer.
const (
	InternalW = 640
	InternalH = 480
)

// PaletteSize is the number of entries in the indexed palette.
const PaletteSize = 256

// Palette is a 256-entry RGBA lookup table. Index 0 is conventionally
// black/background; the zero value is suitable as a placeholder until
// a client issues PALETTE_COLOR_SET.
type Palette [PaletteSize]color.RGBA

// DefaultPalette returns a simple 256-entry ramp: a reasonable seed
// before any client pushes real colors, preferring an explicit
// deterministic default over a zeroed table.
func DefaultPalette() Palette {
	var p Palette
	for i := 0; i < PaletteSize; i++ {
		v := uint8(i)
		p[i] = color.RGBA{R: v, G: v, B: v, A: 0xff}
	}
	return p
}

// Set applies a packed RGBA color (0xRRGGBBAA) to index, ignoring
// out-of-range indices rather than panicking on a malformed client
// message.
func (p *Palette) Set(index uint8, packed uint32) {
	p[index] = color.RGBA{
		R: uint8(packed >> 24),
		G: uint8(packed >> 16),
		B: uint8(packed >> 8),
		A: uint8(packed),
	}
}

// Framebuffer is the internal 8-bit indexed surface a client's shared
// memory segment is mapped onto. W and H are the client's negotiated
// client-area dimensions, which need not
// equal InternalW/InternalH: the window manager composites each
// client's surface into the shared internal framebuffer at its
// window's rect.
type Framebuffer struct {
	W, H int
	Pix  []byte // len == W*H, one palette index per pixel
}

// NewFramebuffer allocates a zeroed W*H indexed surface.
func NewFramebuffer(w, h int) *Framebuffer {
	return &Framebuffer{W: w, H: h, Pix: make([]byte, w*h)}
}

// At returns the palette index at (x, y), or 0 if out of bounds.
func (f *Framebuffer) At(x, y int) byte {
	if x < 0 || y < 0 || x >= f.W || y >= f.H {
		return 0
	}
	return f.Pix[y*f.W+x]
}

// ToRGBA converts the indexed surface to RGBA using pal, one pixel at
// a time, done once per compositor frame.
func (f *Framebuffer) ToRGBA(pal *Palette) []color.RGBA {
	out := make([]color.RGBA, len(f.Pix))
	for i, idx := range f.Pix {
		out[i] = pal[idx]
	}
	return out
}

// LetterboxTransform describes how the fixed InternalW x InternalH
// surface is centred and scaled onto a host surface of possibly
// different size.
type LetterboxTransform struct {
	Scale      float64
	DestX      int
	DestY      int
	DestW      int
	DestH      int
	HostW      int
	HostH      int
}

// ComputeLetterbox picks the largest integer scale that fits if one
// exists (>= 1), otherwise the largest floating scale preserving the
// internal aspect ratio, then centres the result on the host surface.
func ComputeLetterbox(hostW, hostH int) LetterboxTransform {
	intScale := 1
	for s := 1; s*InternalW <= hostW && s*InternalH <= hostH; s++ {
		intScale = s
	}
	var scale float64
	if intScale*InternalW <= hostW && intScale*InternalH <= hostH {
		scale = float64(intScale)
	} else {
		sw := float64(hostW) / InternalW
		sh := float64(hostH) / InternalH
		if sw < sh {
			scale = sw
		} else {
			scale = sh
		}
	}
	destW := int(InternalW * scale)
	destH := int(InternalH * scale)
	return LetterboxTransform{
		Scale: scale,
		DestX: (hostW - destW) / 2,
		DestY: (hostH - destH) / 2,
		DestW: destW,
		DestH: destH,
		HostW: hostW,
		HostH: hostH,
	}
}

// MapPointToInternal maps a host-surface point back into internal
// framebuffer coordinates, returning ok=false for points outside the
// letterboxed destination rect.
func (t LetterboxTransform) MapPointToInternal(x, y int) (ix, iy int, ok bool) {
	if x < t.DestX || y < t.DestY || x >= t.DestX+t.DestW || y >= t.DestY+t.DestH {
		return 0, 0, false
	}
	ix = int(float64(x-t.DestX) / t.Scale)
	iy = int(float64(y-t.DestY) / t.Scale)
	if ix >= InternalW {
		ix = InternalW - 1
	}
	if iy >= InternalH {
		iy = InternalH - 1
	}
	return ix, iy, true
}
