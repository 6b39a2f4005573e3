package overlay

import (
	"context"
	"testing"
)

func TestSplitScene(t *testing.T) {
	scene, choices := SplitScene("You wake in a cave.\n---\nLight a torch\nFeel along the wall")
	if scene != "You wake in a cave." {
		t.Fatalf("scene = %q", scene)
	}
	if len(choices) != 2 || choices[0] != "Light a torch" || choices[1] != "Feel along the wall" {
		t.Fatalf("choices = %v", choices)
	}
}

func TestSplitSceneWithoutSeparator(t *testing.T) {
	scene, choices := SplitScene("Just a scene.")
	if scene != "Just a scene." {
		t.Fatalf("scene = %q", scene)
	}
	if choices != nil {
		t.Fatalf("choices = %v, want nil", choices)
	}
}

func TestRenderDimensions(t *testing.T) {
	r := NewBasic()
	img, err := r.Render(context.Background(), "The door creaks open.\n---\nEnter", 720, 1280)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 720 || bounds.Dy() != 1280 {
		t.Fatalf("bounds = %v, want 720x1280", bounds)
	}
}

func TestRenderEmptyTextIsTransparent(t *testing.T) {
	r := NewBasic()
	img, err := r.Render(context.Background(), "   ", 64, 64)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for y := 0; y < 64; y += 8 {
		for x := 0; x < 64; x += 8 {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0 {
				t.Fatalf("pixel (%d,%d) not transparent for empty text", x, y)
			}
		}
	}
}

func TestWrapRespectsColumns(t *testing.T) {
	lines := wrap("one two three four five six seven", 12)
	for _, line := range lines {
		if len(line) > 12 {
			t.Fatalf("line %q exceeds 12 columns", line)
		}
	}
}

func TestFormatChoiceNumbers(t *testing.T) {
	if got := formatChoice(3, "Run"); got != "3. Run" {
		t.Fatalf("formatChoice = %q", got)
	}
	if got := formatChoice(12, "Hide"); got != "12. Hide" {
		t.Fatalf("formatChoice = %q", got)
	}
}
