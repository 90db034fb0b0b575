package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varexplorer/domain/core"
)

func TestParseRsIDList(t *testing.T) {
	ids := ParseRsIDList(" rs334, rs33930165,,rs334\nrs33950507 ")
	assert.Equal(t, []RsID{"rs334", "rs33930165", "rs33950507"}, ids)
	assert.Empty(t, ParseRsIDList(" , ,"))
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Region
		wantErr bool
	}{
		{name: "plain", input: "11:5227002-5229002", want: Region{Chromosome: "11", Start: 5227002, End: 5229002}},
		{name: "chr prefix and commas", input: "chr11:5,227,002-5,229,002", want: Region{Chromosome: "11", Start: 5227002, End: 5229002}},
		{name: "x chromosome", input: "X:100-200", want: Region{Chromosome: "X", Start: 100, End: 200}},
		{name: "missing colon", input: "11-5227002", wantErr: true},
		{name: "missing end", input: "11:5227002", wantErr: true},
		{name: "reversed", input: "11:200-100", wantErr: true},
		{name: "zero start", input: "11:0-100", wantErr: true},
		{name: "too wide", input: "1:1-6000000", wantErr: true},
		{name: "not numeric", input: "11:a-b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRegion(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, core.ErrInvalidRegion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegionStringAndLabel(t *testing.T) {
	r := Region{Name: "HBB", Chromosome: "11", Start: 5227002, End: 5229002}
	assert.Equal(t, "11:5227002-5229002", r.String())
	assert.Equal(t, "HBB (11:5227002-5229002)", r.Label())
	r.Name = ""
	assert.Equal(t, "11:5227002-5229002", r.Label())
}

func TestParsePopulations(t *testing.T) {
	pops, err := ParsePopulations([]string{"eur", "SAS,afr", "EUR"})
	require.NoError(t, err)
	assert.Equal(t, []Population{PopulationSAS, PopulationAFR, PopulationEUR}, pops)

	_, err = ParsePopulations([]string{"XYZ"})
	assert.True(t, errors.Is(err, core.ErrInvalidPopulation))

	pops, err = ParsePopulations(nil)
	require.NoError(t, err)
	assert.Empty(t, pops)
}

func TestAnnotationHelpers(t *testing.T) {
	a := Annotation{
		RsID:                 "rs334",
		ClinicalSignificance: []string{"pathogenic", "likely_pathogenic"},
		Frequencies:          map[Population]float64{PopulationAFR: 0.0632, PopulationSAS: 0.0051},
	}
	assert.Equal(t, "pathogenic,likely_pathogenic", a.ClinicalSignificanceText())
	assert.Equal(t, "0.0632", a.FrequencyText(PopulationAFR))
	assert.Equal(t, "", a.FrequencyText(PopulationEUR))
	assert.Equal(t, []Population{PopulationSAS, PopulationAFR}, a.KnownPopulations())
	assert.Equal(t, "South Asian", PopulationSAS.Label())
}

func TestIDsDedupes(t *testing.T) {
	vs := []Variant{{RsID: "rs1"}, {RsID: "rs2"}, {RsID: "rs1"}}
	assert.Equal(t, []RsID{"rs1", "rs2"}, IDs(vs))
}
