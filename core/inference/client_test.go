package inference

import (
	"testing"
)

func TestParseLabelScores(t *testing.T) {
	labels := []string{"rescue", "damage", "update"}

	tests := []struct {
		name    string
		raw     string
		wantTop string
		wantErr bool
	}{
		{
			name:    "plain json",
			raw:     `{"scores": {"rescue": 0.8, "damage": 0.3, "update": 0.1}}`,
			wantTop: "rescue",
		},
		{
			name:    "fenced json",
			raw:     "```json\n{\"scores\": {\"rescue\": 0.2, \"damage\": 0.9, \"update\": 0.1}}\n```",
			wantTop: "damage",
		},
		{
			name:    "missing labels score zero",
			raw:     `{"scores": {"update": 0.4}}`,
			wantTop: "update",
		},
		{
			name:    "out of range scores clamped",
			raw:     `{"scores": {"rescue": 1.7, "damage": -0.5, "update": 0.2}}`,
			wantTop: "rescue",
		},
		{
			name:    "not json",
			raw:     "sorry, I cannot help with that",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, err := parseLabelScores(tt.raw, labels)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLabelScores: %v", err)
			}
			if len(ranked) != len(labels) {
				t.Fatalf("got %d scores, want %d", len(ranked), len(labels))
			}
			if ranked[0].Label != tt.wantTop {
				t.Errorf("top label = %s, want %s", ranked[0].Label, tt.wantTop)
			}
			for _, ls := range ranked {
				if ls.Score < 0 || ls.Score > 1 {
					t.Errorf("score for %s = %v, want within [0, 1]", ls.Label, ls.Score)
				}
			}
		})
	}
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		if got := stripFence(tt.in); got != tt.want {
			t.Errorf("stripFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 3); got != "hel" {
		t.Errorf("truncate = %q, want %q", got, "hel")
	}
	if got := truncate("hi", 10); got != "hi" {
		t.Errorf("truncate = %q, want %q", got, "hi")
	}
}
