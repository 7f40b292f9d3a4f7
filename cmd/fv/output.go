package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/funnelvision/internal/deal"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ImportResponse is the response for deals import and pull.
type ImportResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Path   string `json:"path"`
}

// DealsResponse is the response for deals search and stale.
type DealsResponse struct {
	Filter   deal.Filter    `json:"filter"`
	Deals    []deal.Deal    `json:"deals"`
	Coverage *deal.Coverage `json:"coverage,omitempty"`
}

// AskResponse is one answered message from fv ask.
type AskResponse struct {
	Message string `json:"message"`
	State   string `json:"state"`
	Path    string `json:"path"`
	Reply   string `json:"reply"`
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
