// Package actuator defines the screen-automation capability the pipeline
// drives. Implementations wrap an image-matching UI robot; the core treats
// the actuator as a slow, synchronous, single-threaded device and never
// drives it from more than one task.
package actuator

import "context"

// Point is a screen coordinate.
type Point struct {
	X int
	Y int
}

// Region restricts a Locate call to part of the screen.
type Region struct {
	Origin Point
	Width  int
	Height int
}

// Actuator is the screen/image-matching capability. All calls are
// synchronous and may be slow; callers apply their own timeouts. A Locate
// miss is (nil, nil): absence of the element is an answer, not an error.
type Actuator interface {
	// Locate finds template on screen at the given confidence. region may be
	// nil to search the whole screen.
	Locate(ctx context.Context, template string, region *Region, confidence float64) (*Point, error)
	// MoveTo moves the pointer to p. Implementations may ease the motion.
	MoveTo(ctx context.Context, p Point) error
	Click(ctx context.Context) error
	TypeText(ctx context.Context, text string) error
	// Scroll scrolls vertically; positive is up.
	Scroll(ctx context.Context, amount int) error
	// ScreenshotMatches reports whether the current screen contains template.
	ScreenshotMatches(ctx context.Context, template string) (bool, error)
	// Hotkey presses a key chord, e.g. ("ctrl", "f5").
	Hotkey(ctx context.Context, keys ...string) error
}
