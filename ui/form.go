package ui

import (
	"strings"

	"varexplorer/app"
	"varexplorer/domain/variant"
	"varexplorer/internal/config"
	"varexplorer/internal/errors"
)

// Analysis types offered by the selection form
const (
	TypePreset       = "preset"
	TypeCustomRegion = "custom_region"
	TypeRsIDs        = "rsids"
)

const msgInvalidRegion = "Please enter a valid region (chromosome:start-end)"

// analysisForm is the posted selection form. It is also rendered back
// when validation fails so the user keeps their input.
type analysisForm struct {
	Type        string   `form:"analysis_type"`
	Preset      string   `form:"preset"`
	Region      string   `form:"region"`
	RsIDs       string   `form:"rsids"`
	Populations []string `form:"populations"`
	Focus       string   `form:"focus"`
}

func defaultForm(presets []variant.Region) analysisForm {
	form := analysisForm{Type: TypePreset}
	if len(presets) > 0 {
		form.Preset = presets[0].Name
	}
	for _, p := range variant.DefaultPopulations {
		form.Populations = append(form.Populations, string(p))
	}
	return form
}

// Checked reports whether p was selected
func (f analysisForm) Checked(p variant.Population) bool {
	for _, v := range f.Populations {
		if strings.EqualFold(strings.TrimSpace(v), string(p)) {
			return true
		}
	}
	return false
}

// request turns the form into an analysis request. Emptiness checks are
// left to AnalysisRequest.Normalize so the CLI and API share them.
func (f analysisForm) request(presets *config.PresetStore) (app.AnalysisRequest, error) {
	var req app.AnalysisRequest

	switch f.Type {
	case TypePreset:
		region, ok := presets.Lookup(f.Preset)
		if !ok {
			return req, errors.ValidationError("Please choose one of the preset regions")
		}
		req.Mode = app.ModeRegion
		req.Region = region
	case TypeCustomRegion:
		region, err := variant.ParseRegion(f.Region)
		if err != nil {
			return req, errors.Wrap(errors.ValidationError(err.Error()), msgInvalidRegion)
		}
		req.Mode = app.ModeRegion
		req.Region = region
	case TypeRsIDs:
		req.Mode = app.ModeRsIDs
		req.RsIDs = variant.ParseRsIDList(f.RsIDs)
	default:
		return req, errors.ValidationError("Please choose an analysis type")
	}

	pops, err := variant.ParsePopulations(f.Populations)
	if err != nil {
		return req, errors.Wrap(errors.ValidationError(err.Error()), "Unknown population selected")
	}
	req.Populations = pops

	// a focus outside the selection falls back to the default choice
	if f.Focus != "" {
		if focus, err := variant.ParsePopulation(f.Focus); err == nil {
			for _, p := range pops {
				if p == focus {
					req.Focus = focus
				}
			}
		}
	}
	return req, nil
}
