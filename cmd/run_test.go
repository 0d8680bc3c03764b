package cmd

import (
	"testing"

	"trainharness/internal/testcase"
)

func TestFilterCases(t *testing.T) {
	cases := []*testcase.Case{
		{Name: "gpt3_345m_mcore_tp2_pp2_rerun", TestType: "regular"},
		{Name: "gpt3_345m_mcore_tp1_pp2_resume", TestType: "ckpt-resume"},
		{Name: "gpt3_345m_mcore_tp4_pp1", TestType: "regular"},
	}

	tests := []struct {
		name  string
		caseF string
		typeF string
		want  int
	}{
		{"empty filters returns all", "", "", 3},
		{"filter by full name", "gpt3_345m_mcore_tp4_pp1", "", 1},
		{"filter by suffix", "resume", "", 1},
		{"filter by type", "", "regular", 2},
		{"filter by resume type", "", "ckpt-resume", 1},
		{"no match by name", "nonexistent", "", 0},
		{"no match by type", "", "release", 0},
		{"combined name and type", "gpt3_345m_mcore_tp4_pp1", "regular", 1},
		{"combined name and wrong type", "gpt3_345m_mcore_tp4_pp1", "ckpt-resume", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterCases(cases, tt.caseF, tt.typeF)
			if len(got) != tt.want {
				t.Errorf("filterCases(name=%q, type=%q) returned %d, want %d", tt.caseF, tt.typeF, len(got), tt.want)
			}
		})
	}
}

func TestCheckWord(t *testing.T) {
	if checkWord(true) != "passed" {
		t.Errorf("checkWord(true) = %q", checkWord(true))
	}
	if checkWord(false) != "failed" {
		t.Errorf("checkWord(false) = %q", checkWord(false))
	}
}
