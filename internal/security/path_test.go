package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveWithin(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		elems   []string
		want    string
		wantErr error
	}{
		{name: "file", elems: []string{"gatespy-report.json"}, want: filepath.Join(base, "gatespy-report.json")},
		{name: "nested", elems: []string{"a", "b", "report.pdf"}, want: filepath.Join(base, "a", "b", "report.pdf")},
		{name: "dot dot in middle", elems: []string{"a", "..", "report.json"}, want: filepath.Join(base, "report.json")},
		{name: "no elements", want: base},
		{name: "escape", elems: []string{"..", "etc", "passwd"}, wantErr: ErrPathEscape},
		{name: "absolute element stays under base", elems: []string{"/etc/passwd"}, want: filepath.Join(base, "etc", "passwd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWithin(base, tt.elems...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestResolveWithinEmptyBase(t *testing.T) {
	if _, err := ResolveWithin("", "x"); !errors.Is(err, ErrEmptyBase) {
		t.Fatalf("expected ErrEmptyBase, got %v", err)
	}
}

func TestWriteFileWithin(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")

	path, err := WriteFileWithin(base, "gatespy-report.json", []byte("{}\n"))
	if err != nil {
		t.Fatalf("WriteFileWithin: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "{}\n" {
		t.Fatalf("unexpected content %q", data)
	}

	if _, err := WriteFileWithin(base, "../escape.json", nil); !errors.Is(err, ErrPathEscape) {
		t.Fatalf("expected ErrPathEscape, got %v", err)
	}
}
