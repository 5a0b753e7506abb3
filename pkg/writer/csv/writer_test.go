package csv

import (
	stdcsv "encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/experiment"
	"github.com/google/go-cmp/cmp"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	r := stdcsv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return records
}

func TestWriteResults(t *testing.T) {
	quantities := core.NewTable(experiment.TableQuantTotal, []string{"C16:0 (270)", "C18:0 (298)"})
	quantities.AddRow("Sample_4", "Liver_A", "fasted, day 2", []float64{1.5, math.NaN()})

	res := &experiment.Results{
		Modified: true,
		Tables:   []*core.Table{quantities},
		Log: []experiment.Parameter{
			{Name: "Isotope tracer", Values: []string{"C"}},
			{Name: "Isotope tracer purity", Values: []string{"0.01", "0.99"}},
		},
	}

	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	files, err := w.WriteResults(res)
	if err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	wantFiles := []string{
		filepath.Join(dir, "QuantTotal_nMoles_modified.csv"),
		filepath.Join(dir, "Log_modified.csv"),
	}
	if diff := cmp.Diff(wantFiles, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	wantTable := [][]string{
		{"SampleID", "SampleName", "Comments", "C16:0 (270)", "C18:0 (298)"},
		{"Sample_4", "Liver_A", "fasted, day 2", "1.5", ""},
	}
	if diff := cmp.Diff(wantTable, readCSV(t, files[0])); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	wantLog := [][]string{
		{"Isotope tracer", "C"},
		{"Isotope tracer purity", "0.01", "0.99"},
	}
	if diff := cmp.Diff(wantLog, readCSV(t, files[1])); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}
