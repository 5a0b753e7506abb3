package core

import "strings"

// AssayProfile captures everything that differs between assay families: how
// a cluster name maps to a formula, how many parental ion groups a labeled
// run must contain, and how many leading isotopologues of the first cluster
// are kept out of the working table.
type AssayProfile interface {
	Name() string
	// Letter is the prefix of data-table sample names for this assay.
	Letter() byte
	Composition(entry string) (Composition, error)
	// ParentalGroups is the required number of parental groups in a labeled
	// experiment; 0 means any number.
	ParentalGroups() int
	LeadingTrim() int
}

// FattyAcidProfile resolves formulas from chain notation.
type FattyAcidProfile struct {
	Derivatization Composition
}

func (FattyAcidProfile) Name() string        { return "fatty-acid" }
func (FattyAcidProfile) Letter() byte        { return 'F' }
func (FattyAcidProfile) ParentalGroups() int { return 0 }
func (FattyAcidProfile) LeadingTrim() int    { return 0 }

func (p FattyAcidProfile) Composition(entry string) (Composition, error) {
	return ChainComposition(entry, p.Derivatization)
}

// CholesterolProfile uses the fixed composition of TMS-derivatized
// cholesterol regardless of the cluster name.
type CholesterolProfile struct{}

func (CholesterolProfile) Name() string        { return "cholesterol" }
func (CholesterolProfile) Letter() byte        { return 'C' }
func (CholesterolProfile) ParentalGroups() int { return 2 }
func (CholesterolProfile) LeadingTrim() int    { return 2 }

func (CholesterolProfile) Composition(string) (Composition, error) {
	return Composition{"C": 30, "H": 54, "Si": 1, "O": 1}, nil
}

// ProfileForSampleName selects the assay from the first letter of a data
// table sample name ("F1" fatty acids, "C1" cholesterol). Fatty acids are
// the default.
func ProfileForSampleName(name string, derivatization Composition) AssayProfile {
	if strings.HasPrefix(strings.TrimSpace(name), "C") {
		return CholesterolProfile{}
	}
	return FattyAcidProfile{Derivatization: derivatization}
}
