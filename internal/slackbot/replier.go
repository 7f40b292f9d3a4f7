package slackbot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Replier posts a mention's reply to the channel it came from, inside the
// thread when the mention was threaded.
type Replier struct {
	poster  Poster
	channel string
	thread  string
}

// NewReplier creates a Replier for channel. thread may be empty.
func NewReplier(p Poster, channel, thread string) *Replier {
	return &Replier{poster: p, channel: channel, thread: thread}
}

// Reply implements funnel.Replier.
func (r *Replier) Reply(ctx context.Context, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if r.thread != "" {
		opts = append(opts, slack.MsgOptionTS(r.thread))
	}
	if _, _, err := r.poster.PostMessageContext(ctx, r.channel, opts...); err != nil {
		return fmt.Errorf("posting reply to %s: %w", r.channel, err)
	}
	return nil
}
