package cmd

import (
	"testing"

	"github.com/fatih/color"
)

func TestFormatStateWithColor(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	tests := []struct {
		name  string
		state string
		want  string
	}{
		{name: "success", state: "succeeded", want: "succeeded"},
		{name: "failure", state: "FAILED", want: "FAILED"},
		{name: "in flight", state: "analyzing", want: "analyzing"},
		{name: "unknown", state: "idle", want: "idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatStateWithColor(tt.state); got != tt.want {
				t.Fatalf("formatStateWithColor(%q) = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}
