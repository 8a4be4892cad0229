package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeISBN(t *testing.T) {
	tc := []struct {
		name string
		raw  string
		want string
	}{
		{name: "hyphenated isbn13", raw: "978-4-10-101001-4", want: "9784101010014"},
		{name: "isbn10 with check digit x", raw: "4-08-851138-x", want: "408851138X"},
		{name: "surrounding whitespace", raw: "  9784101010014 ", want: "9784101010014"},
		{name: "too short", raw: "12345", want: ""},
		{name: "x in the middle", raw: "40885X1138", want: ""},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeISBN(tt.raw); got != tt.want {
				t.Errorf("NormalizeISBN(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	t.Run("Tilde Prefix", func(t *testing.T) {
		got := ExpandPath("~/.bookx/session.json")
		want := filepath.Join(home, ".bookx", "session.json")
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("Absolute Path Unchanged", func(t *testing.T) {
		if got := ExpandPath("/tmp/session.json"); got != "/tmp/session.json" {
			t.Errorf("expected path to be unchanged, got %s", got)
		}
	})

	t.Run("Tilde Inside Name Unchanged", func(t *testing.T) {
		if got := ExpandPath("~backup/file"); got != "~backup/file" {
			t.Errorf("expected path to be unchanged, got %s", got)
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bookx.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log output to be written to file")
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"total": 2}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(compact) != `{"total":2}` {
		t.Errorf("unexpected compact output %s", compact)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(pretty) != "{\n  \"total\": 2\n}" {
		t.Errorf("unexpected pretty output %s", pretty)
	}
}

func TestOpenURL(t *testing.T) {
	t.Run("rejects non-http schemes", func(t *testing.T) {
		for _, raw := range []string{"file:///etc/passwd", "javascript:alert(1)", "::"} {
			if err := OpenURL(raw); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("%q: expected ErrInvalidInput, got %v", raw, err)
			}
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		orig := getRuntime
		getRuntime = func() string { return "plan9" }
		t.Cleanup(func() { getRuntime = orig })

		if err := OpenURL("http://127.0.0.1:3000/health"); !errors.Is(err, ErrNotImplemented) {
			t.Errorf("expected ErrNotImplemented, got %v", err)
		}
	})
}
