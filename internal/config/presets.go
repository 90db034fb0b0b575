package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"varexplorer/domain/variant"
)

//go:embed presets.yaml
var defaultPresets []byte

type presetFile struct {
	Regions []variant.Region `yaml:"regions"`
}

// ParsePresets decodes and validates a presets document. Names must be
// unique, case-insensitively.
func ParsePresets(data []byte) ([]variant.Region, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	if len(file.Regions) == 0 {
		return nil, fmt.Errorf("presets define no regions")
	}

	seen := make(map[string]bool, len(file.Regions))
	for i, region := range file.Regions {
		name := strings.TrimSpace(region.Name)
		if name == "" {
			return nil, fmt.Errorf("preset %d has no name", i+1)
		}
		key := strings.ToUpper(name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate preset %q", name)
		}
		seen[key] = true
		file.Regions[i].Name = name
		file.Regions[i].Chromosome = strings.TrimPrefix(strings.TrimSpace(region.Chromosome), "chr")
		if err := file.Regions[i].Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return file.Regions, nil
}

// LoadPresets reads presets from path, or the built-in set when path is empty
func LoadPresets(path string) ([]variant.Region, error) {
	if path == "" {
		return ParsePresets(defaultPresets)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	return ParsePresets(data)
}

// PresetStore holds the current region presets
type PresetStore struct {
	mu      sync.RWMutex
	regions []variant.Region
}

// NewPresetStore creates a store holding regions
func NewPresetStore(regions []variant.Region) *PresetStore {
	s := &PresetStore{}
	s.Replace(regions)
	return s
}

// Regions returns a copy of the presets in file order
func (s *PresetStore) Regions() []variant.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]variant.Region(nil), s.regions...)
}

// Lookup finds a preset by name, case-insensitively
func (s *PresetStore) Lookup(name string) (variant.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.regions {
		if strings.EqualFold(r.Name, strings.TrimSpace(name)) {
			return r, true
		}
	}
	return variant.Region{}, false
}

// Replace swaps in a new preset list
func (s *PresetStore) Replace(regions []variant.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = append([]variant.Region(nil), regions...)
}

// ResolveRegion accepts a preset name or chrom:start-end coordinates
func (s *PresetStore) ResolveRegion(value string) (variant.Region, error) {
	if region, ok := s.Lookup(value); ok {
		return region, nil
	}
	return variant.ParseRegion(value)
}
