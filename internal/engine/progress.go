package engine

import (
	"strconv"
	"strings"
)

// StageEncoding labels encoder progress callbacks.
const StageEncoding = "Encoding video"

// ProgressFunc receives encode progress as a percentage out of 100.
type ProgressFunc func(current, total int, stage string)

// progressParser consumes the key=value lines ffmpeg writes to its progress
// pipe and converts out_time_us into a percentage of the known duration. A
// callback fires once per progress block, on the terminating "progress" key.
type progressParser struct {
	totalUS  int64
	lastUS   int64
	lastSent int
	cb       ProgressFunc
}

func newProgressParser(totalSeconds float64, cb ProgressFunc) *progressParser {
	return &progressParser{totalUS: int64(totalSeconds * 1e6), lastSent: -1, cb: cb}
}

func (p *progressParser) Line(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms":
		if us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			p.lastUS = us
		}
	case "progress":
		p.emit(strings.TrimSpace(value) == "end")
	}
}

func (p *progressParser) emit(final bool) {
	if p.cb == nil {
		return
	}
	percent := 0
	switch {
	case final:
		percent = 100
	case p.totalUS > 0:
		percent = int(p.lastUS * 100 / p.totalUS)
		if percent > 100 {
			percent = 100
		}
	}
	if percent == p.lastSent {
		return
	}
	p.lastSent = percent
	p.cb(percent, 100, StageEncoding)
}
