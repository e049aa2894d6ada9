package rubric

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// engineConstraint is the range of rubric profile versions this engine
// understands. Major bumps change the meaning of calibration fields.
const engineConstraint = ">= 1.0.0, < 2.0.0"

// LoadProfile reads a rubric calibration from a YAML profile file.
// Missing sections fall back to the compiled defaults, so a profile may
// override only the thresholds it cares about. The loaded rubric is
// validated before it is returned; a profile that fails validation is
// rejected rather than partially applied.
func LoadProfile(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rubric profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML rubric profile.
func ParseProfile(data []byte) (*Rubric, error) {
	r := Default()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse rubric profile: %w", err)
	}

	v, err := semver.NewVersion(r.Version)
	if err != nil {
		return nil, fmt.Errorf("rubric profile version %q: %w", r.Version, err)
	}
	constraint, err := semver.NewConstraint(engineConstraint)
	if err != nil {
		return nil, fmt.Errorf("engine version constraint: %w", err)
	}
	if !constraint.Check(v) {
		return nil, fmt.Errorf("rubric profile version %s outside supported range %s", v, engineConstraint)
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rubric profile: %w", err)
	}
	return r, nil
}
