package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const okFixture = `{
  "ok": {
    "pre": {
      "0x1000000000000000000000000000000000000001": {
        "balance": "0x0", "code": "0x00", "nonce": "0x0", "storage": {}
      }
    },
    "transaction": {
      "sender": "0x2000000000000000000000000000000000000002",
      "to": "0x1000000000000000000000000000000000000001",
      "gasPrice": "0x1",
      "data": ["0x"],
      "gasLimit": ["0x5208"],
      "value": ["0x0"]
    }
  }
}`

const invalidOpcodeFixture = `{
  "bad": {
    "pre": {
      "0x1000000000000000000000000000000000000001": {
        "balance": "0x0", "code": "0x0c", "nonce": "0x0", "storage": {}
      }
    },
    "transaction": {
      "sender": "0x2000000000000000000000000000000000000002",
      "to": "0x1000000000000000000000000000000000000001",
      "gasPrice": "0x1",
      "data": ["0x"],
      "gasLimit": ["0x5208"],
      "value": ["0x0"]
    }
  }
}`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	w.Close()
	out, _ := io.ReadAll(r)
	return string(out)
}

func TestRunSucceedsOnCleanFixture(t *testing.T) {
	path := writeFixture(t, okFixture)
	var code int
	out := captureStdout(t, func() {
		code = run([]string{"batchvm", "run", path})
	})
	if code != 0 {
		t.Fatalf("run() exit code = %d, want 0", code)
	}
	if !strings.Contains(out, `"name": "ok"`) {
		t.Fatalf("stdout = %s, want a trace document for fixture %q", out, "ok")
	}
}

func TestRunExitsNonZeroOnTerminalErrorCode(t *testing.T) {
	path := writeFixture(t, invalidOpcodeFixture)
	var code int
	captureStdout(t, func() {
		code = run([]string{"batchvm", "run", path})
	})
	if code == 0 {
		t.Fatal("run() exit code = 0 for a fixture that hits INVALID_OPCODE, want nonzero")
	}
}

func TestRunMissingFixturePathExitsNonZero(t *testing.T) {
	code := run([]string{"batchvm", "run"})
	if code == 0 {
		t.Fatal("run() with no fixture path exit code = 0, want nonzero")
	}
}

func TestRunUnreadableFixtureExitsNonZero(t *testing.T) {
	code := run([]string{"batchvm", "run", filepath.Join(t.TempDir(), "missing.json")})
	if code == 0 {
		t.Fatal("run() with a nonexistent fixture path exit code = 0, want nonzero")
	}
}
