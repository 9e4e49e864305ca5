package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, args ...any) {
	c.msg = format
	if len(args) > 0 {
		if s, ok := args[len(args)-1].(string); ok {
			c.msg += s
		}
	}
}

func TestInternalImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"docchain/internal/core", true},
		{"internal/x", true},
		{"docchain/pkg/domain", false},
		{"github.com/google/uuid", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestThirdPartyImportForbidden(t *testing.T) {
	forbidden := ThirdPartyImportForbidden("github.com/google/uuid")
	cases := []struct {
		in   string
		want bool
	}{
		{"encoding/json", false},
		{"docchain/pkg/domain", false},
		{"github.com/google/uuid", false},
		{"go.uber.org/zap", true},
		{"github.com/redis/go-redis/v9", true},
	}
	for _, c := range cases {
		if got := forbidden(c.in); got != c.want {
			t.Fatalf("forbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAssertNoDirectImportsIgnoresTestFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("x.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	write("x_test.go", "package tmp\nimport _ \"docchain/internal/core\"\n")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "test files are skipped")
}

func TestDirectImportViolationsReported(t *testing.T) {
	dir := t.TempDir()
	src := "package tmp\nimport _ \"docchain/internal/core\"\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "bad.go") {
		t.Fatalf("unexpected violations: %v", viols)
	}
	var c captureFatal
	failIfViolations(&c, "reason", viols)
	if !strings.Contains(c.msg, "docchain/internal/core") {
		t.Fatalf("expected violation in message, got %q", c.msg)
	}
}

func TestDirectImportViolationsMissingDir(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
