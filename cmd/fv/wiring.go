package main

import (
	"errors"

	"github.com/matsen/funnelvision/internal/config"
	"github.com/matsen/funnelvision/internal/deal"
	"github.com/matsen/funnelvision/internal/funnel"
	"github.com/matsen/funnelvision/internal/hubspot"
	"github.com/matsen/funnelvision/internal/llm"
	"github.com/matsen/funnelvision/internal/storage"
	"github.com/matsen/funnelvision/internal/usercontext"
)

// mustLoadConfig loads configuration and runs validate, exiting on failure.
func mustLoadConfig(validate func(*config.Config) error) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if validate != nil {
		if err := validate(cfg); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
	}
	return cfg
}

// openDeals opens the configured deal source. The returned close function
// is never nil.
func openDeals(cfg *config.Config) (deal.Searcher, func() error, error) {
	switch cfg.Settings.DealSource {
	case config.SourceSQLite:
		db, err := storage.OpenDB(cfg.Settings.DealDB)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		client, err := newHubSpot(cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil
	}
}

func newHubSpot(cfg *config.Config) (*hubspot.Client, error) {
	return hubspot.NewClient(cfg.HubSpotAPIKey, hubspot.WithBaseURL(cfg.HubSpotBaseURL))
}

// newHandler wires the mention handler. Both language-model capabilities
// share one OpenAI client; they differ only in model settings.
func newHandler(cfg *config.Config, deals deal.Searcher, store usercontext.Store, metrics *funnel.Metrics) (*funnel.Handler, error) {
	if deals == nil {
		return nil, errors.New("deal source is required")
	}
	model, err := llm.NewOpenAI(cfg.OpenAIAPIKey, llm.WithBaseURL(cfg.OpenAIBaseURL))
	if err != nil {
		return nil, err
	}

	s := cfg.Settings
	return funnel.NewHandler(funnel.Config{
		Understanding: model,
		Generation:    model,
		Deals:         deals,
		Store:         store,
		Policy:        s.Policy(),
		Extraction:    funnel.ModelSettings{Model: s.ExtractionModel, Temperature: *s.ExtractionTemperature},
		Narrative:     funnel.ModelSettings{Model: s.NarrativeModel, Temperature: *s.NarrativeTemperature},
		Currency:      s.Currency,
		Logger:        logger,
		Metrics:       metrics,
	}), nil
}

// exitCodeFor maps a deal source error to an exit code.
func exitCodeFor(err error) int {
	switch {
	case hubspot.IsAuthError(err), hubspot.IsRateLimited(err),
		errors.Is(err, hubspot.ErrNetworkError), errors.Is(err, hubspot.ErrInvalidResponse):
		return ExitAPIError
	default:
		return ExitDataError
	}
}
