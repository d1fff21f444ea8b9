// Package device defines the capability surface the agent core needs from
// a device driver. Concrete drivers (ADB, emulators, remote bridges) live
// outside this module and are injected at session initialization.
package device

import "context"

// Screenshot is one captured frame of the device screen.
type Screenshot struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Base64Data string `json:"base64_data"`
}

// Device is the set of primitives an agent may dispatch. The core never
// branches on the concrete implementation.
type Device interface {
	// Screenshot captures the current screen.
	Screenshot(ctx context.Context) (Screenshot, error)

	// CurrentApp returns the package identifier of the foreground app.
	CurrentApp(ctx context.Context) (string, error)

	// Tap presses the screen at pixel coordinates.
	Tap(ctx context.Context, x, y int) error

	// LongPress holds a press at pixel coordinates.
	LongPress(ctx context.Context, x, y int) error

	// Swipe drags from one pixel coordinate to another.
	Swipe(ctx context.Context, x1, y1, x2, y2 int) error

	// TypeText enters text into the focused input.
	TypeText(ctx context.Context, text string) error

	// Back presses the system back button.
	Back(ctx context.Context) error

	// Launch brings the named app to the foreground.
	Launch(ctx context.Context, app string) error
}
