package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/funnelvision/internal/deal"
	"gopkg.in/yaml.v3"
)

const (
	// SettingsDir is the directory name under XDG_CONFIG_HOME.
	SettingsDir = "funnelvision"
	// SettingsFile is the settings file name.
	SettingsFile = "config.yml"
)

// Deal sources.
const (
	SourceHubSpot = "hubspot"
	SourceSQLite  = "sqlite"
)

// Defaults used when the settings file leaves a value unset.
const (
	DefaultModel                 = "gpt-4"
	DefaultExtractionTemperature = 0.0
	DefaultNarrativeTemperature  = 0.3
	DefaultCurrency              = "€"
	DefaultDealDB                = "deals.db"
)

// DefaultOpenStages are the HubSpot pipeline stages that count as open.
var DefaultOpenStages = deal.StageSet{
	{ID: "665585897", Label: "Lead"},
	{ID: "947645674", Label: "Discovery"},
	{ID: "947645675", Label: "Demo"},
	{ID: "751368910", Label: "Solution Confirmation"},
	{ID: "691456745", Label: "Negotiation"},
}

// DefaultClosedStages are the stages excluded under the exclude_closed policy.
var DefaultClosedStages = []string{"closedwon", "closedlost"}

// Settings is the optional YAML settings file.
type Settings struct {
	OpenStages   deal.StageSet `yaml:"open_stages,omitempty" json:"open_stages,omitempty"`
	ClosedStages []string      `yaml:"closed_stages,omitempty" json:"closed_stages,omitempty"`
	StagePolicy  string        `yaml:"stage_policy,omitempty" json:"stage_policy,omitempty"`

	DealSource string `yaml:"deal_source,omitempty" json:"deal_source,omitempty"`
	DealDB     string `yaml:"deal_db,omitempty" json:"deal_db,omitempty"`

	ExtractionModel       string   `yaml:"extraction_model,omitempty" json:"extraction_model,omitempty"`
	NarrativeModel        string   `yaml:"narrative_model,omitempty" json:"narrative_model,omitempty"`
	ExtractionTemperature *float64 `yaml:"extraction_temperature,omitempty" json:"extraction_temperature,omitempty"`
	NarrativeTemperature  *float64 `yaml:"narrative_temperature,omitempty" json:"narrative_temperature,omitempty"`

	Currency string `yaml:"currency,omitempty" json:"currency,omitempty"`
}

// SettingsPath returns the default settings file path.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/funnelvision/config.yml.
func SettingsPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, SettingsDir, SettingsFile)
}

// LoadSettings reads the settings file at path and fills in defaults.
// A missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Settings{}, fmt.Errorf("reading settings: %w", err)
		default:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return Settings{}, fmt.Errorf("parsing settings %s: %w", path, err)
			}
		}
	}

	s.applyDefaults()
	if err := s.validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	if len(s.OpenStages) == 0 {
		s.OpenStages = append(deal.StageSet(nil), DefaultOpenStages...)
	}
	if len(s.ClosedStages) == 0 {
		s.ClosedStages = append([]string(nil), DefaultClosedStages...)
	}
	if s.DealSource == "" {
		s.DealSource = SourceHubSpot
	}
	if s.DealDB == "" {
		s.DealDB = DefaultDealDB
	}
	s.DealDB = ExpandPath(s.DealDB)
	if s.ExtractionModel == "" {
		s.ExtractionModel = DefaultModel
	}
	if s.NarrativeModel == "" {
		s.NarrativeModel = DefaultModel
	}
	if s.ExtractionTemperature == nil {
		t := DefaultExtractionTemperature
		s.ExtractionTemperature = &t
	}
	if s.NarrativeTemperature == nil {
		t := DefaultNarrativeTemperature
		s.NarrativeTemperature = &t
	}
	if s.Currency == "" {
		s.Currency = DefaultCurrency
	}
}

func (s *Settings) validate() error {
	policy, err := deal.ParseStagePolicy(s.StagePolicy)
	if err != nil {
		return err
	}
	s.StagePolicy = string(policy)

	switch s.DealSource {
	case SourceHubSpot, SourceSQLite:
	default:
		return fmt.Errorf("unknown deal_source %q; valid: %s, %s", s.DealSource, SourceHubSpot, SourceSQLite)
	}

	for _, st := range s.OpenStages {
		if strings.TrimSpace(st.ID) == "" {
			return fmt.Errorf("open_stages: stage with empty id")
		}
	}
	return nil
}

// Policy returns the stage policy described by the settings.
func (s Settings) Policy() deal.Policy {
	return deal.Policy{
		Mode:   deal.StagePolicy(s.StagePolicy),
		Open:   s.OpenStages,
		Closed: s.ClosedStages,
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
