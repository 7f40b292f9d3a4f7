// Package slackbot connects the mention handler to the Slack Events API.
package slackbot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/matsen/funnelvision/internal/funnel"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"
)

// EventsPath is where Slack delivers Events API requests.
const EventsPath = "/slack/events"

// maxBodyBytes bounds an Events API request body.
const maxBodyBytes = 1 << 20

// retryHeader is set by Slack on redelivery of an event it considers
// unacknowledged.
const retryHeader = "X-Slack-Retry-Num"

// MentionHandler processes one mention and delivers its reply.
type MentionHandler interface {
	Handle(ctx context.Context, m funnel.Mention, r funnel.Replier) funnel.Result
}

// Poster posts chat messages. *slack.Client implements it.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Server is an http.Handler for Slack Events API requests. It acknowledges
// each event immediately and handles app mentions in the background.
type Server struct {
	handler MentionHandler
	poster  Poster
	secret  string
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewServer creates a Server. signingSecret verifies inbound requests.
func NewServer(h MentionHandler, p Poster, signingSecret string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{handler: h, poster: p, secret: signingSecret, logger: logger}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	if err := s.verify(r.Header, body); err != nil {
		s.logger.Warn("rejected slack request", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if n := r.Header.Get(retryHeader); n != "" {
		s.logger.Debug("ignoring slack retry", zap.String("retry_num", n))
		w.WriteHeader(http.StatusOK)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		s.logger.Warn("unparseable slack event", zap.Error(err))
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "invalid challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		if mention, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
			s.dispatch(context.WithoutCancel(r.Context()), mention)
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) verify(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, s.secret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func (s *Server) dispatch(ctx context.Context, ev *slackevents.AppMentionEvent) {
	if ev.BotID != "" {
		return
	}

	m := funnel.Mention{User: ev.User, Text: ev.Text}
	r := NewReplier(s.poster, ev.Channel, ev.ThreadTimeStamp)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res := s.handler.Handle(ctx, m, r)
		s.logger.Debug("mention handled",
			zap.String("channel", ev.Channel),
			zap.String("state", string(res.State)),
			zap.String("path", string(res.Path)))
	}()
}

// Wait blocks until every dispatched mention has been handled.
func (s *Server) Wait() {
	s.wg.Wait()
}
