package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cairnhq/cairn/internal/registry"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/pkg/models"
)

func sampleListing() listingMsg {
	return listingMsg{
		entries: []registry.Entry{
			{
				Slug:                 "checkout-flow",
				Title:                "Checkout flow",
				PlanType:             models.PlanEpic,
				Status:               models.NodeStatusInProgress,
				CompletionPercentage: 50,
				Updated:              time.Now().Add(-3 * time.Minute),
			},
			{
				Slug:                 "search-index",
				Title:                "Search index",
				PlanType:             models.PlanPhaseDev,
				Status:               models.NodeStatusCompleted,
				CompletionPercentage: 100,
				Updated:              time.Now().Add(-2 * time.Hour),
			},
		},
		runs: map[string]state.Run{
			"checkout-flow": {ID: "run1", Stage: models.StageExecution, Status: state.RunActive},
		},
	}
}

func TestNewWatch(t *testing.T) {
	w := NewWatch(nil, nil)
	if w == nil {
		t.Fatal("NewWatch returned nil")
	}
	if w.runs == nil {
		t.Error("runs map not initialized")
	}
	if w.Init() == nil {
		t.Error("Init() returned no command")
	}
}

func TestWatch_Update_WindowSize(t *testing.T) {
	w := NewWatch(nil, nil)

	model, _ := w.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	got := model.(*Watch)
	if got.width != 120 {
		t.Errorf("width = %d, want 120", got.width)
	}
}

func TestWatch_Update_Listing(t *testing.T) {
	w := NewWatch(nil, nil)

	model, _ := w.Update(sampleListing())
	got := model.(*Watch)
	if len(got.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(got.entries))
	}
	if run, ok := got.runs["checkout-flow"]; !ok || run.Stage != models.StageExecution {
		t.Errorf("checkout-flow run = %+v, want execution stage", run)
	}
}

func TestWatch_Update_QuitKey(t *testing.T) {
	w := NewWatch(nil, nil)

	model, cmd := w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	got := model.(*Watch)
	if !got.quitting {
		t.Error("quitting = false after q")
	}
	if cmd == nil {
		t.Fatal("no quit command returned")
	}
	if got.View() != "" {
		t.Error("View() not empty while quitting")
	}
}

func TestWatch_View_ContainsEntries(t *testing.T) {
	w := NewWatch(nil, nil)
	model, _ := w.Update(sampleListing())

	output := model.(*Watch).View()
	for _, expected := range []string{
		"2 vision(s)",
		"checkout-flow",
		"search-index",
		"execution (active)",
		"100%",
		"3m ago",
		"[q] quit",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("View() missing %q", expected)
		}
	}
}

func TestWatch_View_EmptyRegistry(t *testing.T) {
	w := NewWatch(nil, nil)

	output := w.View()
	if !strings.Contains(output, "No visions registered") {
		t.Error("empty watch should point at `cairn plan`")
	}
}

func TestCompletionBar(t *testing.T) {
	w := NewWatch(nil, nil)
	tests := []struct {
		pct    float64
		filled int
	}{
		{0, 0},
		{50, barWidth / 2},
		{100, barWidth},
		{150, barWidth},
		{-10, 0},
	}
	for _, tt := range tests {
		bar := w.completionBar(tt.pct)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("completionBar(%.0f) filled = %d, want %d", tt.pct, got, tt.filled)
		}
		if got := strings.Count(bar, "░"); got != barWidth-tt.filled {
			t.Errorf("completionBar(%.0f) empty = %d, want %d", tt.pct, got, barWidth-tt.filled)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-very-long-vision-slug", 10, "a-very-..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{49 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := formatAgo(tt.d); got != tt.want {
			t.Errorf("formatAgo(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
