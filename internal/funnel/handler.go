// Package funnel answers revenue-pipeline questions: it interprets a chat
// mention, queries the deal store, computes coverage and has the result
// narrated.
//
// Each mention moves through
//
//	received -> interpreting -> {clarifying | querying} -> composing -> replied
//
// with errored reachable from any state. Errors from collaborators end the
// turn with a fixed apology; nothing is retried.
package funnel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matsen/funnelvision/internal/deal"
	"github.com/matsen/funnelvision/internal/llm"
	"github.com/matsen/funnelvision/internal/usercontext"
	"go.uber.org/zap"
)

// State is a step in handling one mention.
type State string

const (
	StateReceived     State = "received"
	StateInterpreting State = "interpreting"
	StateClarifying   State = "clarifying"
	StateQuerying     State = "querying"
	StateComposing    State = "composing"
	StateReplied      State = "replied"
	StateErrored      State = "errored"
)

// Path is the branch a mention took after interpretation.
type Path string

const (
	PathClarify  Path = "clarify"
	PathCoverage Path = "coverage"
	PathStale    Path = "stale"
)

// Mention is an inbound chat mention.
type Mention struct {
	User string
	Text string
}

// Replier delivers the reply for one mention.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, text string) error

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, text string) error { return f(ctx, text) }

// Result describes how a mention ended.
type Result struct {
	State State
	Path  Path
	Reply string
}

// Config wires a Handler to its collaborators.
type Config struct {
	Understanding llm.Completer
	Generation    llm.Completer
	Deals         deal.Searcher
	Store         usercontext.Store

	Policy     deal.Policy
	Extraction ModelSettings
	Narrative  ModelSettings
	Currency   string

	Logger  *zap.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// Handler runs the per-mention state machine.
type Handler struct {
	interpreter *Interpreter
	composer    *Composer
	deals       deal.Searcher
	store       usercontext.Store
	policy      deal.Policy
	currency    string
	logger      *zap.Logger
	metrics     *Metrics
	now         func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	interp := NewInterpreter(
		timedCompleter{next: cfg.Understanding, metrics: cfg.Metrics, collaborator: collaboratorUnderstanding},
		cfg.Store, cfg.Extraction, cfg.Logger)
	interp.now = cfg.Now

	return &Handler{
		interpreter: interp,
		composer: NewComposer(
			timedCompleter{next: cfg.Generation, metrics: cfg.Metrics, collaborator: collaboratorGeneration},
			cfg.Narrative),
		deals:    timedSearcher{next: cfg.Deals, metrics: cfg.Metrics},
		store:    cfg.Store,
		policy:   cfg.Policy,
		currency: cfg.Currency,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
}

// Handle processes one mention to completion and delivers exactly one reply.
// Any failure, including a panic, is logged and answered with Apology.
func (h *Handler) Handle(ctx context.Context, m Mention, r Replier) (res Result) {
	log := h.logger.With(zap.String("mention_id", uuid.NewString()), zap.String("user", m.User))
	enter(log, StateReceived)

	var path Path
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while handling mention", zap.Any("panic", p), zap.Stack("stack"))
			res = h.fail(ctx, log, r, path, fmt.Errorf("panic: %v", p))
		}
		h.metrics.ObserveMention(res)
	}()

	text := StripMention(m.Text)
	reply, path, err := h.run(ctx, log, m.User, text)
	if err != nil {
		return h.fail(ctx, log, r, path, err)
	}

	if err := r.Reply(ctx, reply); err != nil {
		log.Error("delivering reply failed", zap.Error(err))
		return Result{State: StateErrored, Path: path}
	}
	enter(log, StateReplied)
	return Result{State: StateReplied, Path: path, Reply: reply}
}

func enter(log *zap.Logger, s State) {
	log.Debug("mention state", zap.String("state", string(s)))
}

func (h *Handler) fail(ctx context.Context, log *zap.Logger, r Replier, path Path, err error) Result {
	log.Error("error handling mention", zap.String("path", string(path)), zap.Error(err))
	enter(log, StateErrored)
	if rerr := r.Reply(ctx, Apology); rerr != nil {
		log.Error("delivering apology failed", zap.Error(rerr))
	}
	return Result{State: StateErrored, Path: path, Reply: Apology}
}

func (h *Handler) run(ctx context.Context, log *zap.Logger, userID, text string) (string, Path, error) {
	enter(log, StateInterpreting)
	h.interpreter.interpret(ctx, log, userID, text)

	if !MentionsPipeline(text) {
		reply, err := h.diagnoseStale(ctx, log, text)
		return reply, PathStale, err
	}

	uc := h.store.Get(userID)
	var missing []string
	if !uc.HasTarget() {
		missing = append(missing, MissingTarget)
	}
	if !uc.HasTimeframe() {
		missing = append(missing, MissingTimeframe)
	}
	if len(missing) > 0 {
		enter(log, StateClarifying)
		return Clarification(missing, h.currency), PathClarify, nil
	}

	reply, err := h.coverage(ctx, log, uc)
	return reply, PathCoverage, err
}

func (h *Handler) coverage(ctx context.Context, log *zap.Logger, uc usercontext.Context) (string, error) {
	enter(log, StateQuerying)
	tf := uc.Timeframe.Range
	deals, err := h.deals.Search(ctx, deal.CoverageQuery(h.policy, &tf))
	if err != nil {
		return "", fmt.Errorf("coverage query: %w", err)
	}

	cov := deal.ComputeCoverage(*uc.Target, deals)
	log.Info("pipeline coverage computed",
		zap.String("timeframe", tf.String()),
		zap.String("target", cov.Target.String()),
		zap.String("pipeline_value", cov.PipelineValue.String()),
		zap.String("coverage_ratio", cov.RatioString()),
		zap.Int("deal_count", cov.DealCount))

	enter(log, StateComposing)
	summary := CoverageSummary(cov, uc.Timeframe.Label, h.currency)
	narrative, err := h.composer.Coverage(ctx, summary)
	if err != nil {
		return "", err
	}
	return CoverageHeader + "\n\n" + summary + "\n\n" + narrative, nil
}

func (h *Handler) diagnoseStale(ctx context.Context, log *zap.Logger, question string) (string, error) {
	enter(log, StateQuerying)
	now := h.now()
	deals, err := h.deals.Search(ctx, deal.StaleQuery(h.policy, now))
	if err != nil {
		return "", fmt.Errorf("stale deal query: %w", err)
	}
	log.Info("stale deals fetched", zap.Int("deal_count", len(deals)))

	enter(log, StateComposing)
	narrative, err := h.composer.Stale(ctx, question, StaleDealList(deals, h.policy.Open, h.currency, now))
	if err != nil {
		return "", err
	}
	return StaleHeader + "\n\n" + narrative, nil
}
