// Package freshness decides whether a rendered video still matches the
// inputs it was produced from.
package freshness

import "fmt"

// Snapshot records the identity of the inputs a render consumed. It is
// persisted alongside the rendered artifact and compared against current
// inputs to decide whether a re-render is needed.
type Snapshot struct {
	AudioFingerprint      string `json:"audio_fingerprint"`
	TextFingerprint       string `json:"text_fingerprint"`
	BackgroundFingerprint string `json:"background_fingerprint"`
	StyleFingerprint      string `json:"style_fingerprint"`
	EngineVersion         string `json:"engine_version"`
}

// Inputs describes the current state of a scene's render inputs. Text covers
// the overlay string including its choice lines.
type Inputs struct {
	AudioFingerprint      string
	TextFingerprint       string
	BackgroundFingerprint string
	StyleFingerprint      string
	EngineVersion         string
}

// Capture snapshots the inputs as they were consumed. Callers must capture
// from the values actually fed into the render, not re-read from disk, so a
// concurrent edit during rendering is detected as staleness afterwards.
func Capture(in Inputs) Snapshot {
	return Snapshot{
		AudioFingerprint:      in.AudioFingerprint,
		TextFingerprint:       in.TextFingerprint,
		BackgroundFingerprint: in.BackgroundFingerprint,
		StyleFingerprint:      in.StyleFingerprint,
		EngineVersion:         in.EngineVersion,
	}
}

// IsStale reports whether current inputs differ from the snapshot in any
// field. A zero snapshot is always stale: nothing has been rendered yet.
func (s Snapshot) IsStale(current Inputs) bool {
	if s == (Snapshot{}) {
		return true
	}
	return s.AudioFingerprint != current.AudioFingerprint ||
		s.TextFingerprint != current.TextFingerprint ||
		s.BackgroundFingerprint != current.BackgroundFingerprint ||
		s.StyleFingerprint != current.StyleFingerprint ||
		s.EngineVersion != current.EngineVersion
}

// Identity returns a stable single-line form for logging.
func (s Snapshot) Identity() string {
	return fmt.Sprintf("audio=%s text=%s background=%s style=%s engine=%s",
		short(s.AudioFingerprint), short(s.TextFingerprint),
		short(s.BackgroundFingerprint), short(s.StyleFingerprint),
		short(s.EngineVersion))
}

func short(v string) string {
	if v == "" {
		return "-"
	}
	if len(v) > 12 {
		return v[:12]
	}
	return v
}
