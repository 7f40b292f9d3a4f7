package funnel

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/matsen/funnelvision/internal/deal"
	"github.com/matsen/funnelvision/internal/llm"
	"github.com/matsen/funnelvision/internal/usercontext"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ModelSettings selects the model and sampling temperature for one kind of call.
type ModelSettings struct {
	Model       string
	Temperature float64
}

// Extraction is what the interpreter understood from one message.
// A timeframe is only ever present as a complete label + date range.
type Extraction struct {
	Target    *decimal.Decimal
	Timeframe *usercontext.Timeframe
}

// Empty reports whether nothing was extracted.
func (e Extraction) Empty() bool {
	return e.Target == nil && e.Timeframe == nil
}

// rawExtraction is the JSON shape the model is asked to produce.
type rawExtraction struct {
	Target    json.RawMessage `json:"target"`
	Timeframe *string         `json:"timeframe"`
	Start     *string         `json:"start"`
	End       *string         `json:"end"`
}

// parseTarget accepts a JSON number or a numeric string. Only positive
// values count as a target.
func parseTarget(raw json.RawMessage) *decimal.Decimal {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil
		}
		s = strings.NewReplacer("€", "", "$", "", "£", "", ",", "", " ", "").Replace(str)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return nil
	}
	return &d
}

// ParseExtraction decodes a model response. A timeframe whose label or
// dates are missing or invalid is dropped as a whole.
func ParseExtraction(response string) (Extraction, error) {
	var raw rawExtraction
	if err := llm.DecodeJSON(response, &raw); err != nil {
		return Extraction{}, err
	}

	ext := Extraction{Target: parseTarget(raw.Target)}

	if raw.Timeframe == nil || raw.Start == nil || raw.End == nil {
		return ext, nil
	}
	label := strings.TrimSpace(*raw.Timeframe)
	if label == "" {
		return ext, nil
	}
	r, err := deal.ParseDateRange(*raw.Start, *raw.End)
	if err != nil {
		return ext, nil
	}
	ext.Timeframe = &usercontext.Timeframe{Label: label, Range: r}
	return ext, nil
}

// Interpreter turns free text into a target and timeframe and records
// whatever it found in the context store.
type Interpreter struct {
	llm      llm.Completer
	store    usercontext.Store
	settings ModelSettings
	logger   *zap.Logger
	now      func() time.Time
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(c llm.Completer, store usercontext.Store, settings ModelSettings, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		llm:      c,
		store:    store,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// Interpret extracts context from text and merges it into the user's record.
// It never fails: an unusable model response is logged and yields an empty
// Extraction.
func (i *Interpreter) Interpret(ctx context.Context, userID, text string) Extraction {
	return i.interpret(ctx, i.logger, userID, text)
}

func (i *Interpreter) interpret(ctx context.Context, log *zap.Logger, userID, text string) Extraction {
	response, err := i.llm.Complete(ctx, llm.Request{
		Model:       i.settings.Model,
		System:      Instruction(TaskExtraction, map[string]string{"today": i.now().Format(deal.DateLayout)}),
		User:        text,
		Temperature: i.settings.Temperature,
	})
	if err != nil {
		log.Warn("context extraction call failed", zap.Error(err))
		return Extraction{}
	}

	ext, err := ParseExtraction(response)
	if err != nil {
		log.Warn("failed to parse context JSON", zap.Error(err))
		return Extraction{}
	}

	if !ext.Empty() {
		i.store.Merge(userID, usercontext.Fields{Target: ext.Target, Timeframe: ext.Timeframe})
		log.Debug("context updated",
			zap.Bool("target", ext.Target != nil),
			zap.Bool("timeframe", ext.Timeframe != nil))
	}
	return ext
}
