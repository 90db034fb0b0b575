package analysis

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"varexplorer/domain/variant"
)

// Default row limits for the frequency chart and focus table
const (
	DefaultTopVariants = 10
	DefaultTopFocus    = 5
)

// CategoryCount is one bar of the clinical significance chart
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// FrequencyRow is one group of the allele frequency chart
type FrequencyRow struct {
	RsID   variant.RsID                   `json:"rsID"`
	Values map[variant.Population]float64 `json:"values"`
	Total  float64                        `json:"total"`
}

// FocusRow is one line of the focus population table
type FocusRow struct {
	RsID                 variant.RsID `json:"rsID"`
	Frequency            float64      `json:"frequency"`
	ClinicalSignificance string       `json:"clinical_significance"`
	Consequence          string       `json:"consequence"`
}

// Options controls Summarize
type Options struct {
	Populations []variant.Population
	Focus       variant.Population
	TopVariants int
	TopFocus    int
}

// Summary holds every chart input derived from one annotation set
type Summary struct {
	Populations          []variant.Population `json:"populations"`
	Focus                variant.Population   `json:"focus"`
	ClinicalSignificance []CategoryCount      `json:"clinical_significance"`
	TopVariants          []FrequencyRow       `json:"top_variants"`
	TopFocus             []FocusRow           `json:"top_focus"`
	TopFocusLimit        int                  `json:"top_focus_limit"`
	PopulationStats      []PopulationStats    `json:"population_stats"`
	AnnotationCount      int                  `json:"annotation_count"`
}

// CountClinicalSignificance counts every significance term across the
// annotations. Counts are descending; equal counts sort alphabetically.
func CountClinicalSignificance(anns []variant.Annotation) []CategoryCount {
	counts := make(map[string]int)
	for _, ann := range anns {
		for _, term := range ann.ClinicalSignificance {
			for _, part := range strings.Split(term, ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					counts[part]++
				}
			}
		}
	}

	out := make([]CategoryCount, 0, len(counts))
	for category, count := range counts {
		out = append(out, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TopByTotalFrequency ranks annotations by the sum of their frequencies over
// pops. Annotations with no frequency for any of pops are left out.
func TopByTotalFrequency(anns []variant.Annotation, pops []variant.Population, n int) []FrequencyRow {
	rows := make([]FrequencyRow, 0, len(anns))
	for _, ann := range anns {
		values := make(map[variant.Population]float64, len(pops))
		present := make([]float64, 0, len(pops))
		for _, p := range pops {
			if f, ok := ann.Frequency(p); ok {
				values[p] = f
				present = append(present, f)
			}
		}
		if len(present) == 0 {
			continue
		}
		rows = append(rows, FrequencyRow{
			RsID:   ann.RsID,
			Values: values,
			Total:  floats.Sum(present),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total > rows[j].Total })
	return limit(rows, n)
}

// TopByPopulation ranks annotations carrying a frequency for pop
func TopByPopulation(anns []variant.Annotation, pop variant.Population, n int) []FocusRow {
	rows := make([]FocusRow, 0, len(anns))
	for _, ann := range anns {
		f, ok := ann.Frequency(pop)
		if !ok {
			continue
		}
		rows = append(rows, FocusRow{
			RsID:                 ann.RsID,
			Frequency:            f,
			ClinicalSignificance: ann.ClinicalSignificanceText(),
			Consequence:          ann.MostSevereConsequence,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Frequency > rows[j].Frequency })
	return limit(rows, n)
}

// Summarize builds the three chart inputs. Zero limits fall back to the
// defaults; an empty focus uses the first selected population.
func Summarize(anns []variant.Annotation, opts Options) *Summary {
	if opts.TopVariants <= 0 {
		opts.TopVariants = DefaultTopVariants
	}
	if opts.TopFocus <= 0 {
		opts.TopFocus = DefaultTopFocus
	}
	pops := variant.SortedPopulations(opts.Populations)
	focus := opts.Focus
	if focus == "" && len(pops) > 0 {
		focus = pops[0]
	}

	return &Summary{
		Populations:          pops,
		Focus:                focus,
		ClinicalSignificance: CountClinicalSignificance(anns),
		TopVariants:          TopByTotalFrequency(anns, pops, opts.TopVariants),
		TopFocus:             TopByPopulation(anns, focus, opts.TopFocus),
		TopFocusLimit:        opts.TopFocus,
		PopulationStats:      DescribePopulations(anns, pops),
		AnnotationCount:      len(anns),
	}
}

func limit[T any](rows []T, n int) []T {
	if n >= 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}
