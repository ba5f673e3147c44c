package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		src     Source
		expect  string
		wantErr string
	}{
		{name: "inline value", src: Source{Name: "gemini api key", Value: " inline "}, expect: "inline"},
		{name: "file wins", src: Source{Value: "inline", File: keyFile}, expect: "from-file"},
		{name: "missing file", src: Source{Name: "dsn", File: filepath.Join(dir, "nope")}, wantErr: "reading dsn from file"},
		{name: "empty file", src: Source{Name: "dsn", File: emptyFile}, wantErr: "is empty"},
		{name: "nothing configured", src: Source{}, wantErr: "secret is not configured"},
		{name: "unset env", src: Source{Name: "rabbitmq url", Env: "RESUME_FIT_TEST_UNSET_SECRET"}, wantErr: "RESUME_FIT_TEST_UNSET_SECRET is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Load(tt.src)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RESUME_FIT_TEST_SECRET", " from-env ")

	got, err := Load(Source{Name: "gemini api key", Env: "RESUME_FIT_TEST_SECRET"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected from-env, got %q", got)
	}

	got, err = Load(Source{Value: "inline", Env: "RESUME_FIT_TEST_SECRET"})
	if err != nil || got != "inline" {
		t.Fatalf("expected inline value to win, got %q, %v", got, err)
	}
}
