package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"trainharness/internal/result"
)

type TypeSummary struct {
	TestType     string  `json:"test_type"`
	Cases        int     `json:"cases"`
	Passed       int     `json:"passed"`
	PassRate     float64 `json:"pass_rate"`
	MeanDuration float64 `json:"mean_duration_s"`
}

// Generate reads case results under runDir and produces a summary grouped by
// test type.
func Generate(runDir, format string, w io.Writer) error {
	metas, err := collectMetas(runDir)
	if err != nil {
		return err
	}

	summaries := aggregate(metas)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func collectMetas(runDir string) ([]*result.CaseMeta, error) {
	var metas []*result.CaseMeta
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == "meta.json" {
			meta, err := result.ReadCaseMeta(path)
			if err != nil {
				return nil
			}
			metas = append(metas, meta)
		}
		return nil
	})
	return metas, err
}

func aggregate(metas []*result.CaseMeta) []TypeSummary {
	type accum struct {
		count    int
		passed   int
		duration float64
	}
	byType := map[string]*accum{}

	for _, m := range metas {
		a, ok := byType[m.TestType]
		if !ok {
			a = &accum{}
			byType[m.TestType] = a
		}
		a.count++
		a.duration += float64(m.DurationS)
		if m.Passed() {
			a.passed++
		}
	}

	var summaries []TypeSummary
	for testType, a := range byType {
		summaries = append(summaries, TypeSummary{
			TestType:     testType,
			Cases:        a.count,
			Passed:       a.passed,
			PassRate:     float64(a.passed) / float64(a.count),
			MeanDuration: a.duration / float64(a.count),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].TestType < summaries[j].TestType
	})
	return summaries
}

func writeTable(summaries []TypeSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST TYPE\tCASES\tPASSED\tPASS RATE\tMEAN DURATION")
	fmt.Fprintln(tw, strings.Repeat("-", 64))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f%%\t%.0fs\n",
			s.TestType, s.Cases, s.Passed, s.PassRate*100, s.MeanDuration)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []TypeSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Test Type | Cases | Passed | Pass Rate | Mean Duration |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %d | %.0f%% | %.0fs |\n",
			s.TestType, s.Cases, s.Passed, s.PassRate*100, s.MeanDuration)
	}
	return nil
}

func writeJSON(summaries []TypeSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
