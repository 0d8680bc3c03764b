package report_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"trainharness/internal/report"
	"trainharness/internal/result"
)

func seedRun(t *testing.T) string {
	t.Helper()
	runDir := filepath.Join(t.TempDir(), "runs", "test-run")

	metas := []*result.CaseMeta{
		{Case: "gpt3_tp2_pp2_rerun", TestType: "regular", DurationS: 300, ExitReason: "completed", ChecksPassed: true},
		{Case: "gpt3_tp1_pp1", TestType: "regular", DurationS: 200, ExitReason: "completed", ChecksPassed: false},
		{Case: "gpt3_tp1_pp2_resume", TestType: "ckpt-resume", DurationS: 700, ExitReason: "completed", ChecksPassed: true, Invocations: 2},
		{Case: "gpt3_tp4_pp1", TestType: "ckpt-resume", DurationS: 100, ExitReason: "crashed", ChecksPassed: false},
	}
	for _, m := range metas {
		if err := result.WriteCaseMeta(result.CaseDir(runDir, m.Case), m); err != nil {
			t.Fatalf("seeding meta: %v", err)
		}
	}
	return runDir
}

func TestGenerateTable(t *testing.T) {
	runDir := seedRun(t)

	var buf bytes.Buffer
	if err := report.Generate(runDir, "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "regular") {
		t.Error("expected regular row in output")
	}
	if !strings.Contains(output, "ckpt-resume") {
		t.Error("expected ckpt-resume row in output")
	}
}

func TestGenerateJSON(t *testing.T) {
	runDir := seedRun(t)

	var buf bytes.Buffer
	if err := report.Generate(runDir, "json", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var summaries []report.TypeSummary
	if err := json.Unmarshal(buf.Bytes(), &summaries); err != nil {
		t.Fatalf("parsing json output: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	// Sorted by test type: ckpt-resume first.
	if summaries[0].TestType != "ckpt-resume" || summaries[0].Passed != 1 || summaries[0].Cases != 2 {
		t.Errorf("ckpt-resume summary wrong: %+v", summaries[0])
	}
	if summaries[1].TestType != "regular" || summaries[1].PassRate != 0.5 {
		t.Errorf("regular summary wrong: %+v", summaries[1])
	}
}

func TestGenerateMarkdown(t *testing.T) {
	runDir := seedRun(t)

	var buf bytes.Buffer
	if err := report.Generate(runDir, "markdown", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(buf.String(), "| Test Type |") {
		t.Error("expected markdown header row")
	}
}
