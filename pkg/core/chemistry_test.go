package core

import (
	"errors"
	"math"
	"testing"
)

func TestChainComposition(t *testing.T) {
	methylEster := Composition{"C": 1, "H": 2}

	tests := []struct {
		name           string
		entry          string
		derivatization Composition
		want           Composition
		wantErr        error
	}{
		{
			name:           "palmitate methyl ester",
			entry:          "C16:0",
			derivatization: methylEster,
			want:           Composition{"C": 17, "H": 34, "O": 2},
		},
		{
			name:  "free palmitic acid",
			entry: "C16:0",
			want:  Composition{"C": 16, "H": 32, "O": 2},
		},
		{
			name:           "oleate in cluster name",
			entry:          "C18:1 (296)",
			derivatization: methylEster,
			want:           Composition{"C": 19, "H": 36, "O": 2},
		},
		{
			name:           "two double bonds",
			entry:          "C18:2",
			derivatization: methylEster,
			want:           Composition{"C": 19, "H": 34, "O": 2},
		},
		{
			name:    "no chain notation",
			entry:   "palmitate",
			wantErr: ErrFormat,
		},
		{
			name:    "missing double bond count",
			entry:   "C16",
			wantErr: ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChainComposition(tt.entry, tt.derivatization)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ChainComposition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChainComposition() unexpected error: %v", err)
			}
			for el, n := range tt.want {
				if got[el] != n {
					t.Errorf("ChainComposition()[%s] = %d, want %d", el, got[el], n)
				}
			}
			for el, n := range got {
				if n != 0 && tt.want[el] == 0 {
					t.Errorf("ChainComposition() has unexpected %s%d", el, n)
				}
			}
		})
	}
}

func TestParseFormula(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		want    Composition
	}{
		{"methyl palmitate", "C17H34O2", Composition{"C": 17, "H": 34, "O": 2}},
		{"implicit counts", "CHO", Composition{"C": 1, "H": 1, "O": 1}},
		{"silicon before sulfur", "C30H54SiO", Composition{"C": 30, "H": 54, "Si": 1, "O": 1}},
		{"sulfur", "C3H7NO2S", Composition{"C": 3, "H": 7, "N": 1, "O": 2, "S": 1}},
		{"repeated symbols accumulate", "CH3CH2OH", Composition{"C": 2, "H": 6, "O": 1}},
		{"unknown symbols ignored", "C2H5Br", Composition{"C": 2, "H": 5}},
		{"cluster name", "C16:0 (270)", Composition{"C": 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFormula(tt.formula)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseFormula(%q) = %v, want %v", tt.formula, got, tt.want)
			}
			for el, n := range tt.want {
				if got[el] != n {
					t.Errorf("ParseFormula(%q)[%s] = %d, want %d", tt.formula, el, got[el], n)
				}
			}
		})
	}
}

func TestCompositionString(t *testing.T) {
	tests := []struct {
		name string
		comp Composition
		want string
	}{
		{"hill order", Composition{"O": 2, "H": 34, "C": 17}, "C17H34O2"},
		{"unit counts", Composition{"C": 30, "H": 54, "Si": 1, "O": 1}, "C30H54OSi"},
		{"zero counts omitted", Composition{"C": 2, "H": 6, "N": 0}, "C2H6"},
		{"no carbon", Composition{"H": 2, "O": 1}, "H2O"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.comp.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompositionValidate(t *testing.T) {
	if err := (Composition{"C": 17, "H": 34, "O": 2}).Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if err := (Composition{"Br": 1}).Validate(); !errors.Is(err, ErrUnknownElement) {
		t.Errorf("Validate() error = %v, want ErrUnknownElement", err)
	}
	err := (Composition{"C": -1}).Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	if !errors.Is(err, ErrFormat) {
		t.Errorf("ValidationError should unwrap to ErrFormat")
	}
}

func TestRoundFloat(t *testing.T) {
	tests := []struct {
		name      string
		val       float64
		precision int
		want      float64
	}{
		{"round to 2 decimals", 3.14159, 2, 3.14},
		{"round to 4 decimals", 3.14159, 4, 3.1416},
		{"round to 0 decimals", 3.6, 0, 4.0},
		{"round negative", -3.14159, 2, -3.14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundFloat(tt.val, tt.precision)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("RoundFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}
