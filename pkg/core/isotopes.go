package core

// IsotopeDistribution holds the natural isotope fractions of one element,
// lightest isotope first.
type IsotopeDistribution []float64

// Sum returns the total probability of the distribution.
func (d IsotopeDistribution) Sum() float64 {
	total := 0.0
	for _, p := range d {
		total += p
	}
	return total
}

// Natural isotopic compositions (IUPAC representative values), as fractions.
var naturalAbundance = map[string]IsotopeDistribution{
	"H":  {0.999885, 0.000115},             // 1H, 2H
	"C":  {0.9893, 0.0107},                 // 12C, 13C
	"N":  {0.99632, 0.00368},               // 14N, 15N
	"O":  {0.99757, 0.00038, 0.00205},      // 16O, 17O, 18O
	"Si": {0.92223, 0.04685, 0.03092},      // 28Si, 29Si, 30Si
	"S":  {0.9493, 0.0076, 0.0429, 0.0002}, // 32S, 33S, 34S, 36S
}

// Two-letter symbols come before their one-letter prefixes so that formula
// scanning prefers "Si" over "S".
var elementOrder = []string{"H", "C", "N", "O", "Si", "S"}

// Elements returns the modeled element symbols in a stable order.
func Elements() []string {
	out := make([]string, len(elementOrder))
	copy(out, elementOrder)
	return out
}

// NaturalAbundance returns a copy of the natural isotope distribution of an
// element.
func NaturalAbundance(symbol string) (IsotopeDistribution, bool) {
	d, ok := naturalAbundance[symbol]
	if !ok {
		return nil, false
	}
	out := make(IsotopeDistribution, len(d))
	copy(out, d)
	return out, true
}

// IsModeled reports whether an element symbol is part of the abundance table.
func IsModeled(symbol string) bool {
	_, ok := naturalAbundance[symbol]
	return ok
}
