package patch

import "fmt"

// Kind classifies a discrepancy found during a scan.
type Kind string

// Discrepancy kinds.
const (
	KindMissingMapping     Kind = "missing-mapping"
	KindTextMismatch       Kind = "text-mismatch"
	KindMissingDescription Kind = "missing-description"
	KindUnsupported        Kind = "unsupported-construct"
)

// Discrepancy records one reportable condition tied to a variable block.
// Discrepancies are collected during the scan and surfaced at the end; they
// never abort processing of the remaining blocks.
type Discrepancy struct {
	Kind     Kind   `json:"kind" yaml:"kind"`
	Variable string `json:"variable" yaml:"variable"`
	Line     int    `json:"line" yaml:"line"`
	Current  string `json:"current,omitempty" yaml:"current,omitempty"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// Message returns a human-readable description of the discrepancy.
func (d Discrepancy) Message() string {
	switch d.Kind {
	case KindMissingMapping:
		return fmt.Sprintf("variable %q has no entry in the description mapping", d.Variable)
	case KindTextMismatch:
		return fmt.Sprintf("variable %q description %q doesn't match mapping %q", d.Variable, d.Current, d.Expected)
	case KindMissingDescription:
		return fmt.Sprintf("variable %q is missing a description", d.Variable)
	case KindUnsupported:
		return fmt.Sprintf("variable %q has an unsupported description value (not a single-line quoted string)", d.Variable)
	default:
		return fmt.Sprintf("variable %q: %s", d.Variable, d.Kind)
	}
}

// CountByKind tallies discrepancies per kind.
func CountByKind(ds []Discrepancy) map[Kind]int {
	counts := make(map[Kind]int)
	for _, d := range ds {
		counts[d.Kind]++
	}
	return counts
}
