// Package filter classifies template samples and selects them by kind
package filter

import (
	"regexp"
	"strings"
)

// Kind is the role of a row in the template
type Kind int

const (
	// Sample is an experimental sample, the only kind reported in outputs
	Sample Kind = iota
	// Standard is a calibration standard ("S1", "S2", ...)
	Standard
	// Blank is a negative control ("neg...")
	Blank
)

func (k Kind) String() string {
	switch k {
	case Standard:
		return "standard"
	case Blank:
		return "blank"
	default:
		return "sample"
	}
}

var standardRegex = regexp.MustCompile(`^S[0-9]+`)

// Classify returns the kind of a template sample name
func Classify(name string) Kind {
	name = strings.TrimSpace(name)
	switch {
	case standardRegex.MatchString(name):
		return Standard
	case strings.HasPrefix(name, "neg"):
		return Blank
	default:
		return Sample
	}
}

// Config holds selection configuration
type Config struct {
	Kinds []Kind // Keep only these kinds (nil = all)
}

// Apply returns the indexes of the names that pass every configured filter,
// in input order
func (c *Config) Apply(names []string) []int {
	var kept []int
	for i, name := range names {
		if c.Match(name) {
			kept = append(kept, i)
		}
	}
	return kept
}

// Match reports whether a single name passes the filters
func (c *Config) Match(name string) bool {
	return len(c.Kinds) == 0 || matchesKind(Classify(name), c.Kinds)
}

func matchesKind(kind Kind, kinds []Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Samples returns the indexes of experimental samples
func Samples(names []string) []int {
	return (&Config{Kinds: []Kind{Sample}}).Apply(names)
}

// Standards returns the indexes of calibration standards
func Standards(names []string) []int {
	return (&Config{Kinds: []Kind{Standard}}).Apply(names)
}
