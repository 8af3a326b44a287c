package style

import (
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"gopkg.in/yaml.v3"
)

// profileFile is the on-disk form of a calibrated profile
type profileFile struct {
	Model   string              `yaml:"model,omitempty"`
	Sample  string              `yaml:"sample,omitempty"`
	Profile models.StyleProfile `yaml:"profile"`
}

// MarshalProfile renders a profile as YAML
func MarshalProfile(profile models.StyleProfile, model, sample string) ([]byte, error) {
	data, err := yaml.Marshal(&profileFile{Model: model, Sample: sample, Profile: profile})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// WriteProfile saves a profile so later renders can skip analysis
func WriteProfile(path string, profile models.StyleProfile, model, sample string) error {
	data, err := MarshalProfile(profile, model, sample)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}
	return nil
}

// ReadProfile loads a profile written by WriteProfile
func ReadProfile(path string) (models.StyleProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.StyleProfile{}, fmt.Errorf("failed to read profile file: %w", err)
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return models.StyleProfile{}, fmt.Errorf("failed to parse profile file: %w", err)
	}
	if !f.Profile.IsRecognizable {
		return models.StyleProfile{}, fmt.Errorf("profile in %s is not calibrated", path)
	}
	return f.Profile, nil
}
