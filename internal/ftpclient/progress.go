package ftpclient

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progress is a transfer bar. A nil *progress is valid and draws nothing, so
// callers never need to check whether bars are enabled.
type progress struct {
	bar *progressbar.ProgressBar
}

// newProgress returns a byte-counting bar of the given size, or nil when
// progress output is disabled. A negative size draws a spinner.
func (c *Client) newProgress(size int64, description string) *progress {
	if !c.cfg.Progress {
		return nil
	}
	out := c.out
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
	return &progress{bar: bar}
}

func (p *progress) Write(b []byte) (int, error) {
	if p == nil {
		return len(b), nil
	}
	return p.bar.Write(b)
}

func (p *progress) finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}

// abort leaves the bar where it stopped and moves to a fresh line.
func (p *progress) abort() {
	if p == nil {
		return
	}
	_ = p.bar.Exit()
}
