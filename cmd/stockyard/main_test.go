package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI executes one command against a shared test database.
func runCLI(t *testing.T, dbPath string, stdout io.Writer, args ...string) error {
	t.Helper()
	env := &cliEnv{stdout: stdout, stderr: io.Discard}
	root := newRootCmd(env)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	configPath := filepath.Join(t.TempDir(), "missing.toml")
	root.SetArgs(append([]string{"--db", dbPath, "--config", configPath}, args...))
	return root.ExecuteContext(context.Background())
}

// mustRunCLI fails the test on any command error.
func mustRunCLI(t *testing.T, dbPath string, stdout io.Writer, args ...string) {
	t.Helper()
	if err := runCLI(t, dbPath, stdout, args...); err != nil {
		t.Fatalf("command %v error = %v", args, err)
	}
}

// createdID extracts the parenthesized id from a create command's output.
func createdID(t *testing.T, out *bytes.Buffer) string {
	t.Helper()
	text := strings.TrimSpace(out.String())
	open := strings.LastIndex(text, "(")
	end := strings.LastIndex(text, ")")
	if open < 0 || end <= open {
		t.Fatalf("no id in output %q", text)
	}
	out.Reset()
	return text[open+1 : end]
}

func TestPathsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stockyard.db")
	var out bytes.Buffer
	mustRunCLI(t, dbPath, &out, "paths")
	if !strings.Contains(out.String(), "db: "+dbPath) {
		t.Fatalf("expected db path in output, got %q", out.String())
	}
}

func TestRegisterTreatAndClearanceReport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stockyard.db")
	var out bytes.Buffer

	mustRunCLI(t, dbPath, &out, "paddock", "create", "North", "--area", "42")
	paddockID := createdID(t, &out)
	mustRunCLI(t, dbPath, &out, "mob", "create", "Weaners", "--paddock", paddockID)
	mobID := createdID(t, &out)
	mustRunCLI(t, dbPath, &out, "product", "create", "Drench-X", "--meat-whp", "7")
	productID := createdID(t, &out)
	mustRunCLI(t, dbPath, &out,
		"animal", "register", "--eid", "982 000123", "--tag", "Y1",
		"--mob", mobID, "--dob", "2024-01-01")
	out.Reset()

	mustRunCLI(t, dbPath, &out,
		"record", "treat", "--animal", "Y1", "--product", productID,
		"--date", "2024-06-01", "--batch", "B-77")
	if !strings.Contains(out.String(), "recorded treatment event") {
		t.Fatalf("unexpected treat output %q", out.String())
	}
	out.Reset()

	mustRunCLI(t, dbPath, &out, "report", "whp_clearance", "--as-of", "2024-06-05")
	report := out.String()
	if !strings.Contains(report, "Y1") || !strings.Contains(report, "08/06/2024") {
		t.Fatalf("expected held animal with clear date in report, got %q", report)
	}
	if !strings.Contains(report, "Animals under WHP: 1") {
		t.Fatalf("expected summary line, got %q", report)
	}
	out.Reset()

	mustRunCLI(t, dbPath, &out, "report", "whp_clearance", "--as-of", "2024-06-09")
	if !strings.Contains(out.String(), "Animals under WHP: 0") {
		t.Fatalf("expected animal clear after window, got %q", out.String())
	}
	out.Reset()

	mustRunCLI(t, dbPath, &out, "tasks", "list")
	if !strings.Contains(out.String(), "whp_clearance") {
		t.Fatalf("expected an open clearance task, got %q", out.String())
	}
}

func TestLedgerListsReplayOrder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stockyard.db")
	var out bytes.Buffer

	mustRunCLI(t, dbPath, &out, "paddock", "create", "East")
	paddockID := createdID(t, &out)
	mustRunCLI(t, dbPath, &out, "mob", "create", "Steers", "--paddock", paddockID)
	mobID := createdID(t, &out)
	mustRunCLI(t, dbPath, &out,
		"animal", "register", "--tag", "S1", "--mob", mobID, "--dob", "2024-02-01")
	out.Reset()
	mustRunCLI(t, dbPath, &out,
		"record", "weigh", "--animal", "S1", "--kg", "310", "--date", "2024-06-02")
	out.Reset()

	mustRunCLI(t, dbPath, &out, "ledger", "--animal", "S1")
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// Header, birth, weigh.
	if len(lines) != 3 {
		t.Fatalf("expected 3 ledger lines, got %q", out.String())
	}
	if !strings.Contains(lines[1], "birth") || !strings.Contains(lines[2], "weigh") {
		t.Fatalf("unexpected ledger order %q", out.String())
	}
}

func TestVerifyCleanStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stockyard.db")
	var out bytes.Buffer

	mustRunCLI(t, dbPath, &out, "paddock", "create", "West")
	paddockID := createdID(t, &out)
	mustRunCLI(t, dbPath, &out, "mob", "create", "Heifers", "--paddock", paddockID)
	mobID := createdID(t, &out)
	mustRunCLI(t, dbPath, &out, "animal", "register", "--tag", "H1", "--mob", mobID)
	out.Reset()

	mustRunCLI(t, dbPath, &out, "verify")
	if !strings.Contains(out.String(), "registry matches ledger replay") {
		t.Fatalf("unexpected verify output %q", out.String())
	}
	out.Reset()

	mustRunCLI(t, dbPath, &out, "rebuild")
	if !strings.Contains(out.String(), "registry rebuilt") {
		t.Fatalf("unexpected rebuild output %q", out.String())
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcDB := filepath.Join(dir, "src.db")
	dstDB := filepath.Join(dir, "dst.db")
	snapshotPath := filepath.Join(dir, "snapshot.json")
	var out bytes.Buffer

	mustRunCLI(t, srcDB, &out, "paddock", "create", "South")
	paddockID := createdID(t, &out)
	mustRunCLI(t, srcDB, &out, "mob", "create", "Ewes", "--species", "sheep", "--paddock", paddockID)
	mobID := createdID(t, &out)
	mustRunCLI(t, srcDB, &out,
		"animal", "register", "--tag", "E1", "--species", "sheep", "--mob", mobID)
	out.Reset()

	mustRunCLI(t, srcDB, &out, "export", "--out", snapshotPath)
	out.Reset()
	mustRunCLI(t, dstDB, &out, "import", "--in", snapshotPath)
	if !strings.Contains(out.String(), "imported 2 events") {
		t.Fatalf("unexpected import output %q", out.String())
	}
	out.Reset()

	mustRunCLI(t, dstDB, &out, "animal", "show", "E1")
	if !strings.Contains(out.String(), `"E1"`) {
		t.Fatalf("expected imported animal, got %q", out.String())
	}
}

func TestUnknownReportKindFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stockyard.db")
	var out bytes.Buffer
	if err := runCLI(t, dbPath, &out, "report", "muster_roll"); err == nil {
		t.Fatal("expected error for unknown report kind")
	}
}
