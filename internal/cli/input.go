package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/geoclear/engine/pkg/feature"
	"github.com/geoclear/engine/pkg/geom"
	"github.com/geoclear/engine/pkg/pipeline"
)

// featureFile is the on-disk input format for the process and graph
// commands. A bare JSON array of features is also accepted.
type featureFile struct {
	Features []pipeline.FeatureInput `json:"features"`
	Config   *pipeline.Options       `json:"config,omitempty"`
}

// loadFeatureFile reads a feature file from path. The file may be either a
// {"features": [...], "config": {...}} document or a bare feature array.
func loadFeatureFile(path string) (featureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return featureFile{}, fmt.Errorf("read %s: %w", path, err)
	}

	var file featureFile
	if err := json.Unmarshal(data, &file); err != nil {
		var bare []pipeline.FeatureInput
		if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
			return featureFile{}, fmt.Errorf("parse %s: %w", path, err)
		}
		file.Features = bare
	}
	if len(file.Features) == 0 {
		return featureFile{}, fmt.Errorf("%s contains no features", path)
	}
	return file, nil
}

// buildFeatures converts raw inputs into domain features, failing on the
// first invalid entry.
func buildFeatures(inputs []pipeline.FeatureInput) ([]feature.Feature, error) {
	feats := make([]feature.Feature, 0, len(inputs))
	for _, in := range inputs {
		pri, err := feature.Parse(in.Priority)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", in.ID, err)
		}
		line, err := geom.ParseLineString(in.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", in.ID, err)
		}
		f, err := feature.New(in.ID, line, pri)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", in.ID, err)
		}
		feats = append(feats, f)
	}
	return feats, nil
}
