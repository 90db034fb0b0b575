package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varexplorer/domain/variant"
)

func annotations() []variant.Annotation {
	return []variant.Annotation{
		{
			RsID:                  "rs1",
			ClinicalSignificance:  []string{"pathogenic", "likely_pathogenic"},
			MostSevereConsequence: "missense_variant",
			Frequencies: map[variant.Population]float64{
				variant.PopulationSAS: 0.1,
				variant.PopulationAFR: 0.2,
			},
		},
		{
			RsID:                  "rs2",
			ClinicalSignificance:  []string{"benign"},
			MostSevereConsequence: "synonymous_variant",
			Frequencies: map[variant.Population]float64{
				variant.PopulationEUR: 0.3,
			},
		},
		{
			RsID:                  "rs3",
			ClinicalSignificance:  []string{"pathogenic"},
			MostSevereConsequence: "stop_gained",
			Frequencies: map[variant.Population]float64{
				variant.PopulationEAS: 0.9,
			},
		},
		{
			RsID:                  "rs4",
			ClinicalSignificance:  []string{"benign,pathogenic"},
			MostSevereConsequence: "intron_variant",
			Frequencies: map[variant.Population]float64{
				variant.PopulationSAS: 0.3,
			},
		},
	}
}

func TestCountClinicalSignificance(t *testing.T) {
	got := CountClinicalSignificance(annotations())

	want := []CategoryCount{
		{Category: "pathogenic", Count: 3},
		{Category: "benign", Count: 2},
		{Category: "likely_pathogenic", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CountClinicalSignificance mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, CountClinicalSignificance(nil))
}

func TestTopByTotalFrequency(t *testing.T) {
	pops := []variant.Population{variant.PopulationSAS, variant.PopulationAFR, variant.PopulationEUR}

	rows := TopByTotalFrequency(annotations(), pops, 10)
	require.Len(t, rows, 3, "rs3 has no frequency for the selected populations")

	// rs1 (0.3), rs2 (0.3) and rs4 (0.3) tie and keep input order
	assert.Equal(t, variant.RsID("rs1"), rows[0].RsID)
	assert.InDelta(t, 0.3, rows[0].Total, 1e-9)
	assert.Equal(t, variant.RsID("rs2"), rows[1].RsID)
	assert.Equal(t, variant.RsID("rs4"), rows[2].RsID)
	assert.Equal(t, map[variant.Population]float64{
		variant.PopulationSAS: 0.1,
		variant.PopulationAFR: 0.2,
	}, rows[0].Values)

	rows = TopByTotalFrequency(annotations(), []variant.Population{variant.PopulationEAS}, 1)
	require.Len(t, rows, 1)
	assert.Equal(t, variant.RsID("rs3"), rows[0].RsID)
}

func TestTopByPopulation(t *testing.T) {
	tests := []struct {
		name string
		pop  variant.Population
		n    int
		want []variant.RsID
	}{
		{name: "sas descending", pop: variant.PopulationSAS, n: 5, want: []variant.RsID{"rs4", "rs1"}},
		{name: "limited", pop: variant.PopulationSAS, n: 1, want: []variant.RsID{"rs4"}},
		{name: "no data", pop: variant.PopulationAMR, n: 5, want: []variant.RsID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := TopByPopulation(annotations(), tt.pop, tt.n)
			ids := make([]variant.RsID, 0, len(rows))
			for _, row := range rows {
				ids = append(ids, row.RsID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	rows := TopByPopulation(annotations(), variant.PopulationSAS, 5)
	assert.Equal(t, FocusRow{
		RsID:                 "rs1",
		Frequency:            0.1,
		ClinicalSignificance: "pathogenic,likely_pathogenic",
		Consequence:          "missense_variant",
	}, rows[1])
}

func TestSummarize(t *testing.T) {
	summary := Summarize(annotations(), Options{
		Populations: []variant.Population{variant.PopulationEUR, variant.PopulationSAS},
	})

	assert.Equal(t, []variant.Population{variant.PopulationSAS, variant.PopulationEUR}, summary.Populations)
	assert.Equal(t, variant.PopulationSAS, summary.Focus)
	assert.Equal(t, 4, summary.AnnotationCount)
	assert.Len(t, summary.TopVariants, 3)
	assert.Len(t, summary.TopFocus, 2)
	assert.Len(t, summary.ClinicalSignificance, 3)

	summary = Summarize(annotations(), Options{
		Populations: []variant.Population{variant.PopulationSAS},
		Focus:       variant.PopulationEAS,
		TopFocus:    1,
	})
	assert.Equal(t, variant.PopulationEAS, summary.Focus)
	require.Len(t, summary.TopFocus, 1)
	assert.Equal(t, variant.RsID("rs3"), summary.TopFocus[0].RsID)
}
