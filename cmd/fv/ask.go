package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/matsen/funnelvision/internal/config"
	"github.com/matsen/funnelvision/internal/funnel"
	"github.com/matsen/funnelvision/internal/usercontext"
	"github.com/spf13/cobra"
)

var askUser string

var askCmd = &cobra.Command{
	Use:   "ask <message>...",
	Short: "Answer messages locally as if the bot had been mentioned",
	Long: `Run each message through the bot exactly as a Slack mention would be
handled and print the reply. Messages are handled in order and share one
context store, so a later message can supply a target or timeframe an
earlier one was missing.

Examples:
  fv ask "what's our pipeline coverage for Q2, target €500000"
  fv ask "pipeline?" "target 500k for Q3" "pipeline?" --human
  fv ask "why are deals stuck?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "local", "User ID the messages are attributed to")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig((*config.Config).ValidateAsk)

	deals, closeDeals, err := openDeals(cfg)
	if err != nil {
		exitWithError(ExitDataError, "opening deal source: %v", err)
	}
	defer closeDeals()

	handler, err := newHandler(cfg, deals, usercontext.NewMemoryStore(), nil)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	ctx := context.Background()
	responses := make([]AskResponse, 0, len(args))
	failed := false
	for _, msg := range args {
		res := handler.Handle(ctx, funnel.Mention{User: askUser, Text: msg},
			funnel.ReplierFunc(func(context.Context, string) error { return nil }))
		if res.State == funnel.StateErrored {
			failed = true
		}
		responses = append(responses, AskResponse{
			Message: msg,
			State:   string(res.State),
			Path:    string(res.Path),
			Reply:   res.Reply,
		})
	}

	if humanOutput {
		for i, r := range responses {
			if i > 0 {
				fmt.Println()
			}
			outputHuman("> %s\n%s\n", truncateString(strings.TrimSpace(r.Message), 80), r.Reply)
		}
	} else {
		outputJSON(responses)
	}

	if failed {
		return fmt.Errorf("one or more messages could not be answered")
	}
	return nil
}
