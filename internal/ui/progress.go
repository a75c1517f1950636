package ui

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress renders download progress as a byte bar. The bar is created on
// the first update so its size can come from the response; an unknown size
// shows a spinner with a byte counter instead.
type Progress struct {
	out     io.Writer
	label   string
	enabled bool
	bar     *progressbar.ProgressBar
}

func NewProgress(out io.Writer, label string, enabled bool) *Progress {
	return &Progress{out: out, label: label, enabled: enabled}
}

// Update matches core.ProgressFunc.
func (p *Progress) Update(downloaded, total int64) {
	if !p.enabled {
		return
	}
	if p.bar == nil {
		max := total
		if max <= 0 {
			max = -1
		}
		p.bar = progressbar.NewOptions64(max,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(p.label),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(p.out, "\n") }),
		)
	}
	_ = p.bar.Set64(downloaded)
}

// Finish completes the bar if one was drawn.
func (p *Progress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}
