package core

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Well-known derivatization names.
const (
	DerivatizationNone        = "none"
	DerivatizationMethylEster = "methyl-ester"
	DerivatizationTMS         = "tms"
)

// DerivatizationDatabase stores the composition delta each derivatization adds
// to the free molecule.
type DerivatizationDatabase struct {
	deltas map[string]Composition // name -> added atoms
}

// NewDerivatizationDatabase creates an empty derivatization database
func NewDerivatizationDatabase() *DerivatizationDatabase {
	return &DerivatizationDatabase{
		deltas: make(map[string]Composition),
	}
}

// LoadFromCSV loads derivatizations from a CSV file (format: name,formula).
// The formula is the net change, e.g. "CH2" for a methyl ester.
func (db *DerivatizationDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	if scanner.Scan() {
		// header line
	}

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: expected 2 fields (name,formula), got %d: %w", lineNum, len(parts), ErrFormat)
		}

		name := strings.ToLower(strings.TrimSpace(parts[0]))
		formula := strings.TrimSpace(parts[1])
		delta := ParseFormula(formula)
		if len(delta) == 0 && formula != "" {
			return fmt.Errorf("line %d: no modeled element in formula '%s': %w", lineNum, formula, ErrFormat)
		}

		db.deltas[name] = delta
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// Get returns the composition delta for a derivatization name
func (db *DerivatizationDatabase) Get(name string) (Composition, bool) {
	delta, ok := db.deltas[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return delta.Add(nil), true
}

// Add adds or updates a derivatization
func (db *DerivatizationDatabase) Add(name string, delta Composition) {
	db.deltas[strings.ToLower(name)] = delta
}

// Names returns the known derivatization names, sorted.
func (db *DerivatizationDatabase) Names() []string {
	names := make([]string, 0, len(db.deltas))
	for name := range db.deltas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultDerivatizationDatabase returns a database pre-loaded with the
// derivatizations used for GC-MS of fatty acids and sterols.
func DefaultDerivatizationDatabase() *DerivatizationDatabase {
	db := NewDerivatizationDatabase()

	db.Add(DerivatizationNone, Composition{})
	// R-COOH -> R-COOCH3
	db.Add(DerivatizationMethylEster, Composition{"C": 1, "H": 2})
	// R-OH -> R-O-Si(CH3)3
	db.Add(DerivatizationTMS, Composition{"C": 3, "H": 8, "Si": 1})

	return db
}
