// Package core provides the chemistry model, error taxonomy and tabular
// representation shared by the msanalyzer packages.
package core

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Composition stores the elemental composition of a molecule as element
// symbol -> atom count.
type Composition map[string]int

var chainRegex = regexp.MustCompile(`C([0-9]+):([0-9]+)`)

// formulaRegex alternates the modeled symbols in elementOrder so that Si is
// tried before S.
var formulaRegex = regexp.MustCompile(`(` + strings.Join(elementOrder, "|") + `)([0-9]*)`)

// ChainComposition derives the composition of a fatty acid from its chain
// notation "Cn:d", found anywhere in entry (e.g. "C16:0 (270)"). The
// derivatization delta is added on top of the free acid.
func ChainComposition(entry string, derivatization Composition) (Composition, error) {
	carbon, doubleBonds, err := ParseChain(entry)
	if err != nil {
		return nil, err
	}

	comp := Composition{
		"C": carbon,
		"H": 3 + (carbon-2)*2 + 1 - 2*doubleBonds,
		"O": 2,
	}
	for el, n := range derivatization {
		comp[el] += n
	}
	return comp, nil
}

// ParseChain extracts the carbon and double bond counts of "Cn:d".
func ParseChain(entry string) (int, int, error) {
	m := chainRegex.FindStringSubmatch(entry)
	if m == nil {
		return 0, 0, fmt.Errorf("no chain notation in %q: %w", entry, ErrFormat)
	}
	carbon, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid carbon count in %q: %w", entry, ErrFormat)
	}
	doubleBonds, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid double bond count in %q: %w", entry, ErrFormat)
	}
	return carbon, doubleBonds, nil
}

// ParseFormula parses an elemental formula such as "C17H34O2". Each modeled
// symbol may be followed by a count (absent count means 1); anything else in
// the string is ignored.
func ParseFormula(formula string) Composition {
	comp := make(Composition)
	for _, m := range formulaRegex.FindAllStringSubmatch(formula, -1) {
		n := 1
		if m[2] != "" {
			// the regex only admits digits, overflow is the only failure
			v, err := strconv.Atoi(m[2])
			if err == nil {
				n = v
			}
		}
		comp[m[1]] += n
	}
	return comp
}

// Count returns the number of atoms of an element.
func (c Composition) Count(symbol string) int {
	return c[symbol]
}

// Validate checks that all elements are modeled and counts are non-negative.
func (c Composition) Validate() error {
	for el, n := range c {
		if !IsModeled(el) {
			return fmt.Errorf("element %q: %w", el, ErrUnknownElement)
		}
		if n < 0 {
			return &ValidationError{Field: "Composition", Message: fmt.Sprintf("negative count for %s", el)}
		}
	}
	return nil
}

// Add returns the element-wise sum of two compositions.
func (c Composition) Add(other Composition) Composition {
	out := make(Composition, len(c)+len(other))
	for el, n := range c {
		out[el] += n
	}
	for el, n := range other {
		out[el] += n
	}
	return out
}

// String renders the composition in Hill order (C, H, then alphabetical),
// omitting elements with zero atoms.
func (c Composition) String() string {
	var rest []string
	for el, n := range c {
		if n != 0 && el != "C" && el != "H" {
			rest = append(rest, el)
		}
	}
	sort.Strings(rest)

	var b strings.Builder
	write := func(el string) {
		n := c[el]
		if n == 0 {
			return
		}
		b.WriteString(el)
		if n != 1 {
			b.WriteString(strconv.Itoa(n))
		}
	}
	write("C")
	write("H")
	for _, el := range rest {
		write(el)
	}
	return b.String()
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
