package platform_test

import (
	"errors"
	"testing"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/platform"
	"github.com/devicelab-dev/uia2-server/pkg/platform/mock"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
)

func loginTree() *mock.Node {
	return mock.NewNode(map[string]string{"class": "android.widget.FrameLayout"},
		mock.NewNode(map[string]string{
			"class":       "android.widget.EditText",
			"resource-id": "com.app:id/user",
			"text":        "alice",
			"enabled":     "true",
		}),
		mock.NewNode(map[string]string{
			"class":       "android.widget.Button",
			"resource-id": "com.app:id/login",
			"text":        "Log in",
			"clickable":   "true",
			"enabled":     "true",
		}),
		mock.NewNode(map[string]string{
			"class":        "android.widget.Button",
			"resource-id":  "com.app:id/help",
			"text":         "Help",
			"content-desc": "Open help",
			"clickable":    "true",
			"enabled":      "false",
		}),
	)
}

func TestMatchUiSelector(t *testing.T) {
	roots := []platform.Node{loginTree()}

	tests := []struct {
		name  string
		sel   *selector.UiSelector
		count int
	}{
		{"by class", &selector.UiSelector{ClassName: "android.widget.Button"}, 2},
		{"by text", &selector.UiSelector{Text: "Log in"}, 1},
		{"text contains", &selector.UiSelector{TextContains: "l"}, 2},
		{"text starts with", &selector.UiSelector{TextStartsWith: "He"}, 1},
		{"text matches", &selector.UiSelector{TextMatches: "Log.*"}, 1},
		{"text matches is anchored", &selector.UiSelector{TextMatches: "og"}, 0},
		{"description contains", &selector.UiSelector{DescriptionContains: "help"}, 1},
		{"enabled filter", &selector.UiSelector{ClassName: "android.widget.Button", Enabled: selector.Bool(false)}, 1},
		{"sibling index", &selector.UiSelector{Index: intPtr(1)}, 1},
		{"no match", &selector.UiSelector{ResourceID: "com.app:id/missing"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := platform.MatchUiSelector(tt.sel, roots)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.count {
				t.Errorf("expected %d matches, got %d", tt.count, len(got))
			}
		})
	}
}

func TestMatchUiSelector_BadRegexp(t *testing.T) {
	_, err := platform.MatchUiSelector(&selector.UiSelector{TextMatches: "("}, []platform.Node{loginTree()})
	if !errors.Is(err, core.ErrInvalidSelector) {
		t.Errorf("expected ErrInvalidSelector for invalid textMatches, got %v", err)
	}
}

func TestMatchUiSelector_SkipsNilRoots(t *testing.T) {
	got, err := platform.MatchUiSelector(&selector.UiSelector{Text: "Help"}, []platform.Node{nil, loginTree()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 match, got %d", len(got))
	}
}

func TestNopWakeLock(t *testing.T) {
	var wl platform.WakeLock = platform.NopWakeLock{}
	if err := wl.Acquire(); err != nil {
		t.Errorf("Acquire() error: %v", err)
	}
	if err := wl.Release(); err != nil {
		t.Errorf("Release() error: %v", err)
	}
}

func intPtr(v int) *int { return &v }
