package live

import (
	"strings"
	"testing"
)

func TestNormalizeResources(t *testing.T) {
	got := normalizeResources([]string{"Images", "fonts", "media", "", " stylesheets ", "xhr"})
	want := "image,font,media,stylesheet,xhr"
	if strings.Join(got, ",") != want {
		t.Errorf("normalizeResources = %v, want %s", got, want)
	}

	if out := normalizeResources(nil); len(out) != 0 {
		t.Errorf("nil input = %v, want empty", out)
	}
}
