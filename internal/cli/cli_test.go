package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

// TestRootCommands verifies every command group is registered.
func TestRootCommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"run", "script", "archive", "remote"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

// TestInvalidFormat verifies unknown output formats are rejected.
func TestInvalidFormat(t *testing.T) {
	if _, err := execute(t, "--format", "xml", "script", "decode", "80"); err == nil {
		t.Fatal("expected error for xml format")
	}
}

// TestScriptEncodeDecode verifies a notation script survives the binary form.
func TestScriptEncodeDecode(t *testing.T) {
	out, err := execute(t, "script", "encode", `["StringParseJSONMap", ["MapGetFloat", "price"]]`)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	encoded := strings.TrimSpace(out)
	if encoded == "" {
		t.Fatal("empty encoding")
	}

	out, err = execute(t, "script", "decode", encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !strings.Contains(out, "StringParseJSONMap") || !strings.Contains(out, "MapGetFloat") {
		t.Errorf("decoded script = %q", out)
	}
}

// TestScriptExec verifies a script runs over the given input.
func TestScriptExec(t *testing.T) {
	out, err := execute(t, "--format", "json", "script", "exec",
		`["StringParseJSONMap", ["MapGetFloat", "price"]]`, "--input", `{"price": 12.5}`, "--partial")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}

	var got struct {
		Report   reportResult `json:"report"`
		Partials []string     `json:"partials"`
	}

	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}

	if got.Report.Outcome != "Ok(12.5)" {
		t.Errorf("outcome = %q, want Ok(12.5)", got.Report.Outcome)
	}

	if len(got.Partials) != 3 {
		t.Errorf("partials = %v, want 3 entries", got.Partials)
	}
}

// TestScriptBadNotation verifies unknown operators fail the command.
func TestScriptBadNotation(t *testing.T) {
	if _, err := execute(t, "script", "encode", `["NoSuchOperator"]`); err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

// TestArchiveEmpty verifies listing a fresh store prints nothing.
func TestArchiveEmpty(t *testing.T) {
	out, err := execute(t, "archive", "list", "--db", t.TempDir())
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if out != "" {
		t.Errorf("unexpected output %q", out)
	}
}
