package variant

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"varexplorer/domain/core"
)

// MaxRegionSpan is the widest interval the overlap endpoint accepts
const MaxRegionSpan = 5_000_000

// RsID is a variant accession, normally of the form rs<digits>
type RsID string

func (id RsID) String() string { return string(id) }

// ParseRsIDList splits user input on commas and whitespace, dropping empty
// entries and repeats while keeping first-seen order.
func ParseRsIDList(input string) []RsID {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	return Dedupe(toRsIDs(fields))
}

// Dedupe removes repeated identifiers, keeping the first occurrence
func Dedupe(ids []RsID) []RsID {
	seen := make(map[RsID]bool, len(ids))
	out := make([]RsID, 0, len(ids))
	for _, id := range ids {
		id = RsID(strings.TrimSpace(string(id)))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toRsIDs(values []string) []RsID {
	ids := make([]RsID, len(values))
	for i, v := range values {
		ids[i] = RsID(v)
	}
	return ids
}

// Region is a closed genomic interval on one chromosome
type Region struct {
	Name       string `json:"name,omitempty" yaml:"name"`
	Chromosome string `json:"chromosome" yaml:"chromosome"`
	Start      int64  `json:"start" yaml:"start"`
	End        int64  `json:"end" yaml:"end"`
}

// String renders the region the way the overlap endpoint expects it
func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chromosome, r.Start, r.End)
}

// Label is the preset name when present, otherwise the coordinates
func (r Region) Label() string {
	if r.Name != "" {
		return fmt.Sprintf("%s (%s)", r.Name, r.String())
	}
	return r.String()
}

// Validate checks coordinates
func (r Region) Validate() error {
	if strings.TrimSpace(r.Chromosome) == "" {
		return fmt.Errorf("%w: chromosome is required", core.ErrInvalidRegion)
	}
	if r.Start < 1 {
		return fmt.Errorf("%w: start must be >= 1", core.ErrInvalidRegion)
	}
	if r.End < r.Start {
		return fmt.Errorf("%w: end %d is before start %d", core.ErrInvalidRegion, r.End, r.Start)
	}
	if r.End-r.Start+1 > MaxRegionSpan {
		return fmt.Errorf("%w: span exceeds %d bp", core.ErrInvalidRegion, MaxRegionSpan)
	}
	return nil
}

// ParseRegion parses "11:5227002-5229002" (a leading "chr" is accepted)
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	chrom, span, ok := strings.Cut(s, ":")
	if !ok {
		return Region{}, fmt.Errorf("%w: expected chrom:start-end, got %q", core.ErrInvalidRegion, s)
	}
	chrom = strings.TrimPrefix(strings.TrimPrefix(chrom, "chr"), "CHR")
	startStr, endStr, ok := strings.Cut(span, "-")
	if !ok {
		return Region{}, fmt.Errorf("%w: expected chrom:start-end, got %q", core.ErrInvalidRegion, s)
	}
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("%w: bad start %q", core.ErrInvalidRegion, startStr)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("%w: bad end %q", core.ErrInvalidRegion, endStr)
	}
	region := Region{Chromosome: chrom, Start: start, End: end}
	if err := region.Validate(); err != nil {
		return Region{}, err
	}
	return region, nil
}

// Variant is one row of the region overlap table
type Variant struct {
	RsID        RsID   `json:"rsID"`
	VariantType string `json:"variant_type"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Consequence string `json:"consequence"`
}

// IDs returns the identifiers of the variants, de-duplicated
func IDs(variants []Variant) []RsID {
	ids := make([]RsID, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.RsID)
	}
	return Dedupe(ids)
}

// Population is a 1000 Genomes super-population code
type Population string

const (
	PopulationAFR Population = "AFR"
	PopulationAMR Population = "AMR"
	PopulationEAS Population = "EAS"
	PopulationEUR Population = "EUR"
	PopulationSAS Population = "SAS"
)

// AllPopulations lists the supported super-populations in display order
var AllPopulations = []Population{PopulationSAS, PopulationAFR, PopulationEUR, PopulationAMR, PopulationEAS}

// DefaultPopulations is the comparison set checked by default
var DefaultPopulations = []Population{PopulationSAS, PopulationAFR, PopulationEUR}

var populationLabels = map[Population]string{
	PopulationAFR: "African",
	PopulationAMR: "American",
	PopulationEAS: "East Asian",
	PopulationEUR: "European",
	PopulationSAS: "South Asian",
}

// Label returns the long population name
func (p Population) Label() string {
	if label, ok := populationLabels[p]; ok {
		return label
	}
	return string(p)
}

func (p Population) String() string { return string(p) }

// ParsePopulation is case-insensitive
func ParsePopulation(s string) (Population, error) {
	p := Population(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := populationLabels[p]; !ok {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidPopulation, s)
	}
	return p, nil
}

// ParsePopulations parses a list, dropping repeats and keeping display order
func ParsePopulations(values []string) ([]Population, error) {
	selected := make(map[Population]bool, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			p, err := ParsePopulation(part)
			if err != nil {
				return nil, err
			}
			selected[p] = true
		}
	}
	out := make([]Population, 0, len(selected))
	for _, p := range AllPopulations {
		if selected[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Annotation is the per-variant annotation record
type Annotation struct {
	RsID                  RsID                   `json:"rsID"`
	ClinicalSignificance  []string               `json:"clinical_significance"`
	MostSevereConsequence string                 `json:"most_severe_consequence"`
	GeneSymbol            string                 `json:"gene_symbol"`
	Frequencies           map[Population]float64 `json:"frequencies"`
}

// Frequency returns the allele frequency for p and whether it is known
func (a Annotation) Frequency(p Population) (float64, bool) {
	f, ok := a.Frequencies[p]
	return f, ok
}

// FrequencyText formats a frequency for tables, empty when unknown
func (a Annotation) FrequencyText(p Population) string {
	f, ok := a.Frequency(p)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'g', 4, 64)
}

// ClinicalSignificanceText joins the significance terms with commas
func (a Annotation) ClinicalSignificanceText() string {
	return strings.Join(a.ClinicalSignificance, ",")
}

// KnownPopulations lists populations with a frequency, in display order
func (a Annotation) KnownPopulations() []Population {
	out := make([]Population, 0, len(a.Frequencies))
	for _, p := range AllPopulations {
		if _, ok := a.Frequencies[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Skipped records an identifier that produced no annotation
type Skipped struct {
	RsID   RsID   `json:"rsID"`
	Reason string `json:"reason"`
}

// AnnotationBatch is the outcome of annotating a list of identifiers
type AnnotationBatch struct {
	Annotations []Annotation `json:"annotations"`
	Skipped     []Skipped    `json:"skipped,omitempty"`
}

// SortedPopulations returns ps in display order
func SortedPopulations(ps []Population) []Population {
	order := make(map[Population]int, len(AllPopulations))
	for i, p := range AllPopulations {
		order[p] = i
	}
	out := append([]Population(nil), ps...)
	sort.SliceStable(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
