package browser

import "image"

// Frame is one recorded screenshot and where the cursor was when it was taken.
type Frame struct {
	Image  image.Image
	Cursor CursorPosition
}

// CursorPosition represents the cursor state at a point in time
type CursorPosition struct {
	X     int
	Y     int
	State CursorState
	Click bool // Whether a click happened at this position
}

// CursorState represents the visual state of the cursor
type CursorState int

const (
	CursorDefault CursorState = iota
	CursorPointer
	CursorText
)
