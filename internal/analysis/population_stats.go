package analysis

import (
	"github.com/montanaflynn/stats"

	"varexplorer/domain/variant"
)

// CommonFrequency is the allele frequency at which a variant counts as common
const CommonFrequency = 0.01

// PopulationStats describes the allele frequencies reported for one
// population. Variants without a frequency for it are not counted.
type PopulationStats struct {
	Population variant.Population `json:"population"`
	Known      int                `json:"known"`
	Common     int                `json:"common"`
	Mean       float64            `json:"mean"`
	Median     float64            `json:"median"`
	Max        float64            `json:"max"`
}

// DescribePopulations summarizes the frequency distribution of each
// population in pops, in the order given
func DescribePopulations(anns []variant.Annotation, pops []variant.Population) []PopulationStats {
	out := make([]PopulationStats, 0, len(pops))
	for _, p := range pops {
		ps := PopulationStats{Population: p}
		var data stats.Float64Data
		for _, a := range anns {
			if f, ok := a.Frequency(p); ok {
				data = append(data, f)
				if f >= CommonFrequency {
					ps.Common++
				}
			}
		}
		ps.Known = len(data)
		if ps.Known > 0 {
			// errors only arise for empty input
			ps.Mean, _ = data.Mean()
			ps.Median, _ = data.Median()
			ps.Max, _ = data.Max()
		}
		out = append(out, ps)
	}
	return out
}
