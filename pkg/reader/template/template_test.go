package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/ChrisMcGann/msanalyzer/pkg/calibration"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mapCSV = `SampleID,SampleName,SampleWeight,Comments,Dilution
Sample_1,S1,,,
Sample_2,S2,,,
Sample_3,Liver_A,12.5,fasted,700
Sample_4,,,unused,
Sample_5,Liver_B,,,n/a
`

func TestReadMap(t *testing.T) {
	entries, err := ReadMap(strings.NewReader(mapCSV), "")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "S1", entries[0].SampleName)
	assert.Equal(t, 1.0, entries[0].Weight)
	assert.Empty(t, entries[0].Extra)

	liver := entries[2]
	assert.Equal(t, "Sample_3", liver.SampleID)
	assert.Equal(t, 12.5, liver.Weight)
	assert.Equal(t, "fasted", liver.Comments)
	assert.Equal(t, map[string]float64{"Dilution": 700}, liver.Extra)
	assert.Equal(t, 4, liver.Line)

	assert.Equal(t, "Liver_B", entries[3].SampleName)
	assert.NotContains(t, entries[3].Extra, "Dilution")
}

func TestMapEntrySuffix(t *testing.T) {
	assert.Equal(t, "12", MapEntry{SampleID: "Sample_12"}.Suffix())
	assert.Equal(t, "1_b", MapEntry{SampleID: "Sample_1_b"}.Suffix())
	assert.Equal(t, "7", MapEntry{SampleID: "7"}.Suffix())
}

func TestReadMapErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing SampleName column", "SampleID,SampleWeight\nSample_1,1\n"},
		{"missing SampleID", "SampleID,SampleName\n,Liver\n"},
		{"bad weight", "SampleID,SampleName,SampleWeight\nSample_1,Liver,heavy\n"},
		{"no samples", "SampleID,SampleName\nSample_1,\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMap(strings.NewReader(tt.input), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrFormat), "want ErrFormat, got %v", err)
		})
	}
}

func TestReadStandards(t *testing.T) {
	input := `Chain,MW,Stock Conc (ug/ul),Weight (%),Extra
16:0,270.45,10,4,0
C18:1,296.49,10,8,
,,,,
19:0,312.53,10,2.5,0.1
`
	specs, err := ReadStandards(strings.NewReader(input), "")
	require.NoError(t, err)

	want := []calibration.StandardSpec{
		{Chain: "16:0", MW: 270.45, StockConc: 10, WeightPercent: 4},
		{Chain: "18:1", MW: 296.49, StockConc: 10, WeightPercent: 8},
		{Chain: "19:0", MW: 312.53, StockConc: 10, WeightPercent: 2.5, Extra: 0.1},
	}
	assert.Equal(t, want, specs)
	assert.Equal(t, "C16:0 (270)", specs[0].Key())
}

func TestReadStandardsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing columns", "Chain,MW\n16:0,270\n"},
		{"missing MW", "Chain,MW,Stock conc (ug/ul),Weight (%)\n16:0,,10,4\n"},
		{"zero MW", "Chain,MW,Stock conc (ug/ul),Weight (%)\n16:0,0,10,4\n"},
		{"bad stock", "Chain,MW,Stock conc (ug/ul),Weight (%)\n16:0,270,ten,4\n"},
		{"no standards", "Chain,MW,Stock conc (ug/ul),Weight (%)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadStandards(strings.NewReader(tt.input), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrFormat), "want ErrFormat, got %v", err)
		})
	}
}

func TestReadMasks(t *testing.T) {
	input := `cluster,point,included
C16:0 (270),2,0
C16:0 (270),3,false
C18:1 (296),1,yes
`
	masks, err := ReadMasks(strings.NewReader(input), "")
	require.NoError(t, err)

	mask, ok := masks.Mask("C16:0 (270)", 5)
	require.True(t, ok)
	assert.Equal(t, []bool{true, false, false, true, true}, mask)

	mask, ok = masks.Mask("C18:1 (296)", 3)
	require.True(t, ok)
	assert.Equal(t, []bool{true, true, true}, mask)

	_, ok = masks.Mask("C20:4 (318)", 3)
	assert.False(t, ok)
}

func TestReadMasksErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing column", "cluster,point\nC16:0 (270),1\n"},
		{"bad point", "cluster,point,included\nC16:0 (270),zero,1\n"},
		{"bad included", "cluster,point,included\nC16:0 (270),1,maybe\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMasks(strings.NewReader(tt.input), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrFormat), "want ErrFormat, got %v", err)
		})
	}

	masks, err := ReadMasks(strings.NewReader(""), "")
	require.NoError(t, err)
	assert.Empty(t, masks)
}
