package entities

import "fmt"

// Surface describes what the engine renders into.
// Embedders that only know a size leave Native nil; embedders that own a
// platform window or surface object pass it through Native untouched.
type Surface struct {
	// Native is an opaque platform object (window, surface). Never inspected by the bridge.
	Native any `json:"-" yaml:"-"`

	// Width of the drawable area in pixels.
	Width int `json:"width" yaml:"width" validate:"gt=0"`

	// Height of the drawable area in pixels.
	Height int `json:"height" yaml:"height" validate:"gt=0"`
}

// NewSurface returns a size-only surface.
func NewSurface(width, height int) Surface {
	return Surface{Width: width, Height: height}
}

// Valid reports whether the surface has a drawable area.
func (s Surface) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

func (s Surface) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
