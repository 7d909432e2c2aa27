package main

import "testing"

func TestWorkItems(t *testing.T) {
	tests := []struct {
		name      string
		request   string
		issues    int
		files     []string
		wantCount int
	}{
		{"bare request", "add rate limiting", 0, nil, 1},
		{"one issue", "add rate limiting", 1, nil, 1},
		{"padded batch", "migrate billing", 5, nil, 5},
		{"with files", "rework search", 2, []string{"a.go", "b.go"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := workItems(tt.request, tt.issues, tt.files)
			if len(items) != tt.wantCount {
				t.Fatalf("workItems returned %d items, want %d", len(items), tt.wantCount)
			}
			if items[0].Body != tt.request {
				t.Errorf("first item body = %q, want the request", items[0].Body)
			}
			if items[0].Title == "" {
				t.Error("first item has no title")
			}
			if len(items[0].Files) != len(tt.files) {
				t.Errorf("first item carries %d files, want %d", len(items[0].Files), len(tt.files))
			}
			for i, item := range items {
				if item.ID == "" {
					t.Errorf("item %d has no ID", i)
				}
			}
			// Padding items carry IDs only; the request text stays on
			// the first item.
			for _, item := range items[1:] {
				if item.Body != "" {
					t.Errorf("padding item %s carries a body", item.ID)
				}
			}
		})
	}
}

func TestGateFor(t *testing.T) {
	for _, name := range []string{"security", "dependency", "budget", "tests"} {
		if _, ok := gateFor(name); !ok {
			t.Errorf("gateFor(%q) not found", name)
		}
	}
	if _, ok := gateFor("fortune_teller"); ok {
		t.Error("gateFor accepted an unknown name")
	}
}
