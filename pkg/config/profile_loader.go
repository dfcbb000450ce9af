package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// LoadClinicProfile loads a single clinic's profile YAML by clinic id. It
// searches profilesDir for clinic_<id>.yaml, following the teacher's
// profile_<code>.yaml naming convention.
func LoadClinicProfile(profilesDir, clinicID string) (contracts.ClinicProfile, error) {
	path := filepath.Join(profilesDir, fmt.Sprintf("clinic_%s.yaml", clinicID))

	data, err := os.ReadFile(path)
	if err != nil {
		return contracts.ClinicProfile{}, fmt.Errorf("config: load clinic profile %q: %w", clinicID, err)
	}

	profile := contracts.DefaultClinicProfile(clinicID)
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return contracts.ClinicProfile{}, fmt.Errorf("config: parse clinic profile %q: %w", clinicID, err)
	}
	if profile.ClinicID == "" {
		profile.ClinicID = clinicID
	}
	return profile, nil
}

// LoadAllClinicProfiles loads every clinic_*.yaml file in profilesDir,
// keyed by clinic id.
func LoadAllClinicProfiles(profilesDir string) (map[string]contracts.ClinicProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "clinic_*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("config: glob clinic profiles: %w", err)
	}

	profiles := make(map[string]contracts.ClinicProfile, len(matches))
	for _, path := range matches {
		base := filepath.Base(path)
		clinicID := strings.TrimSuffix(strings.TrimPrefix(base, "clinic_"), ".yaml")

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}

		profile := contracts.DefaultClinicProfile(clinicID)
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if profile.ClinicID == "" {
			profile.ClinicID = clinicID
		}
		profiles[profile.ClinicID] = profile
	}
	return profiles, nil
}

// Resolver builds an orchestrator.ProfileResolver-compatible function over
// a pre-loaded profile map, falling back to contracts.DefaultClinicProfile
// for unknown clinics.
func Resolver(profiles map[string]contracts.ClinicProfile) func(clinicID string) contracts.ClinicProfile {
	return func(clinicID string) contracts.ClinicProfile {
		if profile, ok := profiles[clinicID]; ok {
			return profile
		}
		return contracts.DefaultClinicProfile(clinicID)
	}
}
