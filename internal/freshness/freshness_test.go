package freshness

import (
	"os"
	"path/filepath"
	"testing"
)

func testInputs() Inputs {
	return Inputs{
		AudioFingerprint:      "aud-1",
		TextFingerprint:       "text-1",
		BackgroundFingerprint: "bg-1",
		StyleFingerprint:      "style-1",
		EngineVersion:         "ffmpeg version 7.1",
	}
}

func TestSnapshotFreshWhenUnchanged(t *testing.T) {
	in := testInputs()
	snap := Capture(in)
	if snap.IsStale(in) {
		t.Fatal("identical inputs must be fresh")
	}
}

func TestSnapshotStaleOnAnyFieldChange(t *testing.T) {
	base := testInputs()
	snap := Capture(base)

	mutations := map[string]func(*Inputs){
		"audio":      func(in *Inputs) { in.AudioFingerprint = "aud-2" },
		"text":       func(in *Inputs) { in.TextFingerprint = "text-2" },
		"background": func(in *Inputs) { in.BackgroundFingerprint = "bg-2" },
		"style":      func(in *Inputs) { in.StyleFingerprint = "style-2" },
		"engine":     func(in *Inputs) { in.EngineVersion = "ffmpeg version 8.0" },
	}
	for name, mutate := range mutations {
		in := base
		mutate(&in)
		if !snap.IsStale(in) {
			t.Errorf("%s change must mark the snapshot stale", name)
		}
	}
}

func TestZeroSnapshotAlwaysStale(t *testing.T) {
	var snap Snapshot
	if !snap.IsStale(Inputs{}) {
		t.Fatal("unrendered scene must report stale")
	}
}

func TestFingerprintFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(path, []byte("audio-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	fromFile, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile() error: %v", err)
	}
	if fromFile != FingerprintBytes([]byte("audio-bytes")) {
		t.Error("file and byte fingerprints must agree for identical content")
	}

	missing, err := FingerprintFile(filepath.Join(dir, "absent.mp3"))
	if err != nil {
		t.Fatalf("absent file: %v", err)
	}
	if missing != "" {
		t.Errorf("absent file fingerprint = %q, want empty", missing)
	}
}

func TestIdentityTruncates(t *testing.T) {
	snap := Capture(Inputs{AudioFingerprint: "0123456789abcdef0123"})
	id := snap.Identity()
	want := "audio=0123456789ab text=- background=- style=- engine=-"
	if id != want {
		t.Fatalf("Identity() = %q, want %q", id, want)
	}
}
