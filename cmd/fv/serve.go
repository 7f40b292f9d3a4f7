package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matsen/funnelvision/internal/config"
	"github.com/matsen/funnelvision/internal/funnel"
	"github.com/matsen/funnelvision/internal/slackbot"
	"github.com/matsen/funnelvision/internal/usercontext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack bot",
	Long: `Run the Slack bot HTTP server on $PORT (default 3000).

Endpoints:
  /slack/events  Slack Events API (signed with SLACK_SIGNING_SECRET)
  /metrics       Prometheus metrics
  /healthz       liveness probe

Environment Variables:
  SLACK_BOT_TOKEN       Bot token used to post replies (required)
  SLACK_SIGNING_SECRET  Verifies inbound requests (required)
  OPENAI_API_KEY        Language model key (required)
  HUBSPOT_API_KEY       CRM key (required when deal_source is hubspot)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig((*config.Config).ValidateServe)

	deals, closeDeals, err := openDeals(cfg)
	if err != nil {
		exitWithError(ExitDataError, "opening deal source: %v", err)
	}
	defer closeDeals()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := usercontext.NewMemoryStore()
	registry.MustRegister(newUserContextGauge(store))

	handler, err := newHandler(cfg, deals, store, funnel.NewMetrics(registry))
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	bot := slackbot.NewServer(handler, slack.New(cfg.SlackBotToken), cfg.SlackSigningSecret, logger)

	mux := http.NewServeMux()
	mux.Handle(slackbot.EventsPath, bot)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("funnel vision is listening",
			zap.Int("port", cfg.Port),
			zap.String("deal_source", cfg.Settings.DealSource))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	bot.Wait()
	return nil
}

// newUserContextGauge reports how many users have a stored context.
func newUserContextGauge(store *usercontext.MemoryStore) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "funnelvision_user_contexts",
			Help: "Number of users with a stored target or timeframe",
		},
		func() float64 { return float64(store.Len()) },
	)
}
