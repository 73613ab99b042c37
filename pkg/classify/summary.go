package classify

import (
	"maps"
	"slices"
)

// PassSummary counts the labels one pass produced.
type PassSummary struct {
	Attribute string         `json:"attribute" yaml:"attribute"`
	Labels    map[string]int `json:"labels" yaml:"labels"`
	Unset     int            `json:"unset" yaml:"unset"`
}

// SortedLabels returns the label names in ascending order.
func (p PassSummary) SortedLabels() []string {
	return slices.Sorted(maps.Keys(p.Labels))
}

// Summary counts results per pass.
type Summary struct {
	Passes  []PassSummary `json:"passes" yaml:"passes"`
	Records int           `json:"records" yaml:"records"`
	// Complete counts records with no classification gaps.
	Complete int `json:"complete" yaml:"complete"`
}

// Summarize counts the labels and gaps in results.
func (c *Classifier) Summarize(results []Result) Summary {
	s := Summary{
		Records: len(results),
		Passes:  make([]PassSummary, len(c.passes)),
	}
	for i, p := range c.passes {
		s.Passes[i] = PassSummary{Attribute: p.Attribute, Labels: map[string]int{}}
	}

	for _, r := range results {
		complete := true
		for i, l := range r.Labels {
			if i >= len(s.Passes) {
				break
			}
			if v, ok := l.Str(); ok {
				s.Passes[i].Labels[v]++
			} else {
				s.Passes[i].Unset++
				complete = false
			}
		}
		if complete {
			s.Complete++
		}
	}

	return s
}
