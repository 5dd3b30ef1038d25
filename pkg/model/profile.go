package model

import (
	"os"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

const DefaultProfileName = "default"

// BusinessProfile is the per-business configuration a call runs under.
type BusinessProfile struct {
	Name         string   `yaml:"-"`
	BusinessName string   `yaml:"business_name"`
	Hours        string   `yaml:"hours"`
	Days         []string `yaml:"days"`
	Timezone     string   `yaml:"timezone"`
	CalendarID   string   `yaml:"calendar_id"`
	Services     []string `yaml:"services"`
	SlotMinutes  int      `yaml:"slot_minutes"`
	Voice        string   `yaml:"voice"`
	Language     string   `yaml:"language"`
	Instructions string   `yaml:"instructions"`
}

// Profiles is the parsed profile file.
type Profiles struct {
	Default  string                      `yaml:"default"`
	Profiles map[string]*BusinessProfile `yaml:"profiles"`
}

// DefaultProfile is used when no profile file is given.
func DefaultProfile() *BusinessProfile {
	return &BusinessProfile{
		Name:         DefaultProfileName,
		BusinessName: "our office",
		CalendarID:   "primary",
		SlotMinutes:  60,
		Timezone:     "UTC",
	}
}

// LoadProfiles reads a YAML profile file. An empty path yields only the built-in default.
func LoadProfiles(path string) (*Profiles, error) {
	if path == "" {
		return &Profiles{
			Default:  DefaultProfileName,
			Profiles: map[string]*BusinessProfile{DefaultProfileName: DefaultProfile()},
		}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read profile file", goerr.V("file", path))
	}

	var profiles Profiles
	if err := yaml.Unmarshal(content, &profiles); err != nil {
		return nil, goerr.Wrap(err, "failed to parse profile file", goerr.V("file", path))
	}
	if len(profiles.Profiles) == 0 {
		return nil, goerr.Wrap(ErrConfiguration, "no profiles defined", goerr.V("file", path))
	}

	for name, p := range profiles.Profiles {
		if p == nil {
			return nil, goerr.Wrap(ErrConfiguration, "empty profile", goerr.V("name", name))
		}
		p.Name = name
		if p.SlotMinutes <= 0 {
			p.SlotMinutes = 60
		}
		if p.CalendarID == "" {
			p.CalendarID = "primary"
		}
	}

	return &profiles, nil
}

// Resolve returns the named profile, or the default one when name is empty.
// A single profile file without a default key resolves to its only entry.
func (x *Profiles) Resolve(name string) (*BusinessProfile, error) {
	if name == "" {
		name = x.Default
	}
	if name == "" && len(x.Profiles) == 1 {
		for _, p := range x.Profiles {
			return p, nil
		}
	}

	p, ok := x.Profiles[name]
	if !ok {
		return nil, goerr.Wrap(ErrProfileNotFound, "profile is not defined",
			goerr.V("name", name),
			goerr.V("available", x.Names()))
	}
	return p, nil
}

// Names returns the profile names in sorted order.
func (x *Profiles) Names() []string {
	names := make([]string, 0, len(x.Profiles))
	for name := range x.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
