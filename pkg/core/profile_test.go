package core

import "testing"

func TestProfileForSampleName(t *testing.T) {
	methylEster := Composition{"C": 1, "H": 2}

	tests := []struct {
		name       string
		sample     string
		wantName   string
		wantLetter byte
		wantGroups int
		wantTrim   int
	}{
		{"fatty acid run", "F1", "fatty-acid", 'F', 0, 0},
		{"cholesterol run", "C12", "cholesterol", 'C', 2, 2},
		{"leading whitespace", "  C3", "cholesterol", 'C', 2, 2},
		{"unknown letter defaults to fatty acids", "X1", "fatty-acid", 'F', 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProfileForSampleName(tt.sample, methylEster)
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
			if p.Letter() != tt.wantLetter {
				t.Errorf("Letter() = %c, want %c", p.Letter(), tt.wantLetter)
			}
			if p.ParentalGroups() != tt.wantGroups {
				t.Errorf("ParentalGroups() = %d, want %d", p.ParentalGroups(), tt.wantGroups)
			}
			if p.LeadingTrim() != tt.wantTrim {
				t.Errorf("LeadingTrim() = %d, want %d", p.LeadingTrim(), tt.wantTrim)
			}
		})
	}
}

func TestProfileComposition(t *testing.T) {
	fa := FattyAcidProfile{Derivatization: Composition{"C": 1, "H": 2}}
	comp, err := fa.Composition("C16:0 (270)")
	if err != nil {
		t.Fatalf("Composition() unexpected error: %v", err)
	}
	if comp.String() != "C17H34O2" {
		t.Errorf("fatty acid Composition() = %s, want C17H34O2", comp)
	}

	comp, err = CholesterolProfile{}.Composition("anything")
	if err != nil {
		t.Fatalf("Composition() unexpected error: %v", err)
	}
	if comp.String() != "C30H54OSi" {
		t.Errorf("cholesterol Composition() = %s, want C30H54OSi", comp)
	}
}
