// Package cluster turns raw instrument column identifiers into isotopologue
// clusters.
package cluster

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
)

// labeledRatio is the distinct-description ratio below which an experiment
// is considered labeled.
const labeledRatio = 0.6

// columnRegex matches "<id>_<mass>[.<decimals>]_<description>".
var columnRegex = regexp.MustCompile(`(\d+)_(\d+)(?:\.\d+)?_(\d+)`)

// Ion is one instrument column.
type Ion struct {
	// Index is the position of the column in the resolved header.
	Index       int
	Column      string
	ID          int
	Mass        int
	Description string
}

// Cluster is one parental metabolite and its mass variants, in ascending
// unit mass steps.
type Cluster struct {
	Key         string
	Description string
	Name        string
	Ions        []Ion
	// Trim is the number of leading isotopologues kept out of the working
	// view.
	Trim int
}

// Labels returns "<Name> M.<k>" for every isotopologue, k starting at -Trim.
func (c *Cluster) Labels() []string {
	labels := make([]string, len(c.Ions))
	for i := range c.Ions {
		labels[i] = fmt.Sprintf("%s M.%d", c.Name, i-c.Trim)
	}
	return labels
}

// Working returns the isotopologues used for correction and quantification.
func (c *Cluster) Working() []Ion {
	return c.Ions[c.Trim:]
}

// WorkingLabels returns the labels of Working.
func (c *Cluster) WorkingLabels() []string {
	return c.Labels()[c.Trim:]
}

// Parental returns the lowest-mass ion of the cluster.
func (c *Cluster) Parental() Ion {
	return c.Ions[0]
}

// Set is the result of resolving a header.
type Set struct {
	Labeled  bool
	Clusters []*Cluster
}

// Names returns the cluster names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.Clusters))
	for i, c := range s.Clusters {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a cluster by exact name, or else by a name prefix ending at a
// space, so that a chain such as "C19:0" selects "C19:0 (312)" but "C1" does
// not select "C16:0 (270)".
func (s *Set) Lookup(name string) (*Cluster, bool) {
	name = strings.TrimSpace(name)
	for _, c := range s.Clusters {
		if c.Name == name {
			return c, true
		}
	}
	if name == "" {
		return nil, false
	}
	for _, c := range s.Clusters {
		if rest, ok := strings.CutPrefix(c.Name, name); ok && (rest == "" || rest[0] == ' ') {
			return c, true
		}
	}
	return nil, false
}

// Columns returns the working column names of the set. Labeled clusters
// contribute one column per working isotopologue; unlabeled clusters are
// named after the cluster.
func (s *Set) Columns() []string {
	var cols []string
	for _, c := range s.Clusters {
		if s.Labeled {
			cols = append(cols, c.WorkingLabels()...)
		} else {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// FullColumns is Columns including trimmed isotopologues.
func (s *Set) FullColumns() []string {
	var cols []string
	for _, c := range s.Clusters {
		if s.Labeled {
			cols = append(cols, c.Labels()...)
		} else {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// IsIonColumn reports whether a header cell is an ion column identifier.
func IsIonColumn(s string) bool {
	return columnRegex.MatchString(s)
}

// ParseColumn parses an ion column identifier.
func ParseColumn(s string) (Ion, error) {
	m := columnRegex.FindStringSubmatch(s)
	if m == nil {
		return Ion{}, fmt.Errorf("column %q is not an ion identifier: %w", s, core.ErrFormat)
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return Ion{}, fmt.Errorf("column %q: invalid id: %w", s, core.ErrFormat)
	}
	mass, err := strconv.Atoi(m[2])
	if err != nil {
		return Ion{}, fmt.Errorf("column %q: invalid mass: %w", s, core.ErrFormat)
	}
	return Ion{Column: s, ID: id, Mass: mass, Description: m[3]}, nil
}

// ChainName converts an instrument description into chain notation: the
// first two digits are the carbon count, the rest the double bonds
// ("160" -> "C16:0").
func ChainName(description string) string {
	if len(description) < 2 {
		return "C" + description
	}
	return "C" + description[:2] + ":" + description[2:]
}

// IsLabeled reports whether the ions look like a labeled experiment, where
// most descriptions repeat across several mass variants.
func IsLabeled(ions []Ion) bool {
	if len(ions) == 0 {
		return false
	}
	unique := make(map[string]struct{}, len(ions))
	for _, ion := range ions {
		unique[ion.Description] = struct{}{}
	}
	return float64(len(unique))/float64(len(ions)) < labeledRatio
}

// Resolve parses the ion columns of a header and groups them into clusters.
// Header cells that are not ion identifiers are skipped. A nil profile
// applies no structural checks.
func Resolve(columns []string, profile core.AssayProfile) (*Set, error) {
	var ions []Ion
	for i, col := range columns {
		if !IsIonColumn(col) {
			continue
		}
		ion, err := ParseColumn(col)
		if err != nil {
			return nil, err
		}
		ion.Index = i
		ions = append(ions, ion)
	}
	if len(ions) == 0 {
		return nil, fmt.Errorf("no ion columns found: %w", core.ErrFormat)
	}

	if !IsLabeled(ions) {
		return resolveSingletons(ions)
	}

	clusters := groupIons(ions)
	if profile != nil {
		if want := profile.ParentalGroups(); want > 0 && len(clusters) != want {
			return nil, fmt.Errorf("%s experiment has %d parental ion groups, want %d: %w",
				profile.Name(), len(clusters), want, core.ErrStructure)
		}
		if trim := profile.LeadingTrim(); trim > 0 {
			first := clusters[0]
			if len(first.Ions) <= trim {
				return nil, fmt.Errorf("cluster %s has %d isotopologues, cannot trim %d: %w",
					first.Name, len(first.Ions), trim, core.ErrStructure)
			}
			first.Trim = trim
		}
	}
	return &Set{Labeled: true, Clusters: clusters}, nil
}

func resolveSingletons(ions []Ion) (*Set, error) {
	set := &Set{}
	seen := make(map[string]bool, len(ions))
	for _, ion := range ions {
		name := clusterName(ion.Description, ion.Mass)
		if seen[name] {
			return nil, fmt.Errorf("duplicate ion %s (column %q): %w", name, ion.Column, core.ErrFormat)
		}
		seen[name] = true
		set.Clusters = append(set.Clusters, &Cluster{
			Key:         name,
			Description: ion.Description,
			Name:        name,
			Ions:        []Ion{ion},
		})
	}
	return set, nil
}

// groupIons groups ions by description in order of first appearance, sorts
// each group by mass and splits it wherever the mass does not step by one.
func groupIons(ions []Ion) []*Cluster {
	var order []string
	groups := make(map[string][]Ion)
	for _, ion := range ions {
		if _, ok := groups[ion.Description]; !ok {
			order = append(order, ion.Description)
		}
		groups[ion.Description] = append(groups[ion.Description], ion)
	}

	var clusters []*Cluster
	for _, desc := range order {
		group := groups[desc]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Mass < group[j].Mass })

		var runs [][]Ion
		start := 0
		for i := 1; i < len(group); i++ {
			if group[i].Mass-group[i-1].Mass != 1 {
				runs = append(runs, group[start:i])
				start = i
			}
		}
		runs = append(runs, group[start:])

		for i, run := range runs {
			key := desc
			if len(runs) > 1 {
				key = fmt.Sprintf("%s-%d", desc, i)
			}
			clusters = append(clusters, &Cluster{
				Key:         key,
				Description: desc,
				Name:        clusterName(desc, run[0].Mass),
				Ions:        run,
			})
		}
	}
	return clusters
}

func clusterName(description string, mass int) string {
	return fmt.Sprintf("%s (%d)", ChainName(description), mass)
}
