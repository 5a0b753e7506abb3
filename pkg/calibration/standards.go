// Package calibration computes standard quantities and fits the standard
// curves used for quantification.
package calibration

import (
	"fmt"
	"regexp"
	"strconv"
)

// StandardSpec is one row of the standards template.
type StandardSpec struct {
	// Chain is the chain notation without the leading C, e.g. "16:0".
	Chain string
	// MW is the molecular weight in g/mol.
	MW float64
	// StockConc is the stock concentration in ug/ul.
	StockConc     float64
	WeightPercent float64
	// Extra is added to the master mix concentration (ug/ul).
	Extra float64
}

// Key returns the cluster name the standard quantifies, "C<chain> (<MW>)".
func (s StandardSpec) Key() string {
	return fmt.Sprintf("C%s (%d)", s.Chain, int(s.MW))
}

// MixConcentration returns the concentration of the standard in the master
// mix, in ug/ul.
func (s StandardSpec) MixConcentration(mixForPrep, mixTotal float64) float64 {
	return s.StockConc * s.WeightPercent / 100 * mixForPrep / mixTotal
}

// Quantities holds nMol per standard volume, aligned with StandardSet.Volumes.
type Quantities []float64

// Source tells where the quantities of a cluster came from.
type Source struct {
	Key string
	// Borrowed is set when Key is another parental ion of the same chain.
	Borrowed bool
}

// StandardSet holds the standard quantities of every template standard.
type StandardSet struct {
	Volumes []float64
	// Keys preserves template order.
	Keys       []string
	quantities map[string]Quantities
}

// StandardQuantities computes the nMol of every standard at every volume:
// 1000 * vol * (stock * wt/100 * mixForPrep/mixTotal + extra) / MW.
func StandardQuantities(specs []StandardSpec, mixForPrep, mixTotal float64, volumes []float64) *StandardSet {
	set := &StandardSet{
		Volumes:    append([]float64(nil), volumes...),
		quantities: make(map[string]Quantities, len(specs)),
	}
	for _, spec := range specs {
		conc := spec.MixConcentration(mixForPrep, mixTotal)
		q := make(Quantities, len(volumes))
		for i, vol := range volumes {
			q[i] = 1000 * vol * (conc + spec.Extra) / spec.MW
		}
		key := spec.Key()
		if _, ok := set.quantities[key]; !ok {
			set.Keys = append(set.Keys, key)
		}
		set.quantities[key] = q
	}
	return set
}

// Get returns the quantities of an exact key.
func (s *StandardSet) Get(key string) (Quantities, bool) {
	q, ok := s.quantities[key]
	return q, ok
}

var ionNameRegex = regexp.MustCompile(`^(C[0-9]+:[0-9]+) \(([0-9]+)\)`)

// Lookup returns the standard quantities for a cluster name. When the exact
// name has no standard, the heaviest parental ion with the same chain is
// used instead.
func (s *StandardSet) Lookup(name string) (Quantities, Source, bool) {
	if q, ok := s.quantities[name]; ok {
		return q, Source{Key: name}, true
	}

	m := ionNameRegex.FindStringSubmatch(name)
	if m == nil {
		return nil, Source{}, false
	}
	chain := m[1]

	best, bestMass := "", -1
	for _, key := range s.Keys {
		km := ionNameRegex.FindStringSubmatch(key)
		if km == nil || km[1] != chain {
			continue
		}
		mass, err := strconv.Atoi(km[2])
		if err != nil {
			continue
		}
		if mass >= bestMass {
			best, bestMass = key, mass
		}
	}
	if best == "" {
		return nil, Source{}, false
	}
	return s.quantities[best], Source{Key: best, Borrowed: true}, true
}
