// Package progress wraps progressbar with enabled/disabled handling so scan
// phases can describe themselves without branching on verbosity.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar is a spinner-mode progress display. All methods are no-ops when the
// bar is disabled or nil, so phases can hold one unconditionally.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New creates a progress spinner. If enabled=false, returns a Bar where all
// methods are no-ops.
func New(enabled bool) *Bar {
	if !enabled {
		return &Bar{}
	}
	return &Bar{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
	)}
}

// Describe updates the spinner description from a stats stringer.
func (b *Bar) Describe(s fmt.Stringer) {
	if b != nil && b.bar != nil {
		b.bar.Describe(s.String())
	}
}

// Finish clears the spinner and prints a final summary line.
func (b *Bar) Finish(s fmt.Stringer) {
	if b != nil && b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, "✔ "+s.String())
	}
}
