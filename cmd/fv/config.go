package main

import (
	"fmt"
	"strings"

	"github.com/matsen/funnelvision/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with credentials redacted",
	Long: `Print the effective configuration: credentials and port from the
environment (and .env), settings from $FV_CONFIG or
~/.config/funnelvision/config.yml, with defaults filled in.

Credentials are shown as their first characters followed by ****.`,
	Args: cobra.NoArgs,
	Run:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(nil)
	r := cfg.Redacted()

	if !humanOutput {
		outputJSON(r)
		return
	}

	s := r.Settings
	outputHuman("settings file:    %s\n", r.SettingsPath)
	outputHuman("port:             %d\n", r.Port)
	outputHuman("%-17s %s\n", config.EnvSlackBotToken+":", orUnset(r.SlackBotToken))
	outputHuman("%-17s %s\n", config.EnvSlackSigningSecret+":", orUnset(r.SlackSigningSecret))
	outputHuman("%-17s %s\n", config.EnvOpenAIAPIKey+":", orUnset(r.OpenAIAPIKey))
	outputHuman("%-17s %s\n", config.EnvHubSpotAPIKey+":", orUnset(r.HubSpotAPIKey))
	outputHuman("deal source:      %s\n", s.DealSource)
	if s.DealSource == config.SourceSQLite {
		outputHuman("deal db:          %s\n", s.DealDB)
	}
	outputHuman("stage policy:     %s\n", s.StagePolicy)

	stages := make([]string, len(s.OpenStages))
	for i, st := range s.OpenStages {
		stages[i] = fmt.Sprintf("%s (%s)", st.Label, st.ID)
	}
	outputHuman("open stages:      %s\n", strings.Join(stages, ", "))
	outputHuman("closed stages:    %s\n", strings.Join(s.ClosedStages, ", "))
	outputHuman("extraction model: %s (temperature %.1f)\n", s.ExtractionModel, *s.ExtractionTemperature)
	outputHuman("narrative model:  %s (temperature %.1f)\n", s.NarrativeModel, *s.NarrativeTemperature)
	outputHuman("currency:         %s\n", s.Currency)
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
