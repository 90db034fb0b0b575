package ensembl

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"varexplorer/domain/variant"
)

// parseOverlap maps the overlap/region array onto Variant rows
func parseOverlap(body []byte) ([]variant.Variant, error) {
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, fmt.Errorf("overlap response is not an array")
	}

	variants := make([]variant.Variant, 0, len(result.Array()))
	result.ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		if id == "" {
			return true
		}
		variants = append(variants, variant.Variant{
			RsID:        variant.RsID(id),
			VariantType: item.Get("var_class").String(),
			Start:       item.Get("start").Int(),
			End:         item.Get("end").Int(),
			Consequence: item.Get("consequence_type").String(),
		})
		return true
	})
	return variants, nil
}

// parseVEP extracts the annotation fields from the first VEP result
func parseVEP(id variant.RsID, body []byte) (*variant.Annotation, error) {
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, fmt.Errorf("vep response is not an array")
	}
	records := result.Array()
	if len(records) == 0 {
		return nil, ErrNoData
	}
	record := records[0]

	colocated := record.Get("colocated_variants").Array()

	return &variant.Annotation{
		RsID:                  id,
		ClinicalSignificance:  clinicalSignificance(colocated),
		MostSevereConsequence: record.Get("most_severe_consequence").String(),
		GeneSymbol:            canonicalGeneSymbol(record.Get("transcript_consequences").Array()),
		Frequencies:           populationFrequencies(colocated),
	}, nil
}

// clinicalSignificance collects clin_sig terms (string or list) in response
// order without repeats
func clinicalSignificance(colocated []gjson.Result) []string {
	seen := make(map[string]bool)
	terms := []string{}
	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, term)
	}

	for _, c := range colocated {
		sig := c.Get("clin_sig")
		switch {
		case !sig.Exists():
			continue
		case sig.IsArray():
			for _, term := range sig.Array() {
				add(term.String())
			}
		default:
			add(sig.String())
		}
	}
	return terms
}

// canonicalGeneSymbol returns the gene of the first canonical transcript
func canonicalGeneSymbol(transcripts []gjson.Result) string {
	for _, t := range transcripts {
		if t.Get("canonical").Int() == 1 {
			return t.Get("gene_symbol").String()
		}
	}
	return ""
}

// populationFrequencies reads colocated_variants[*].frequencies. The service
// keys frequencies by allele ({"T": {"afr": 0.06}}); a flat {"afr": 0.06}
// object is accepted too. The first value seen for a population wins.
func populationFrequencies(colocated []gjson.Result) map[variant.Population]float64 {
	freqs := make(map[variant.Population]float64)
	record := func(key string, value gjson.Result) {
		pop, err := variant.ParsePopulation(key)
		if err != nil || value.Type != gjson.Number {
			return
		}
		if _, exists := freqs[pop]; !exists {
			freqs[pop] = value.Float()
		}
	}

	for _, c := range colocated {
		frequencies := c.Get("frequencies")
		if !frequencies.IsObject() {
			continue
		}
		frequencies.ForEach(func(key, value gjson.Result) bool {
			if value.IsObject() {
				value.ForEach(func(pop, freq gjson.Result) bool {
					record(pop.String(), freq)
					return true
				})
				return true
			}
			record(key.String(), value)
			return true
		})
	}
	return freqs
}
