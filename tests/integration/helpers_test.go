// Package integration provides end-to-end tests for the fv binary.
package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

var (
	fvBinary     string
	fvBinaryOnce sync.Once
	fvBinaryErr  error
)

// getFVBinary builds fv once per test run.
func getFVBinary(t *testing.T) string {
	t.Helper()
	fvBinaryOnce.Do(func() {
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			fvBinaryErr = os.ErrInvalid
			return
		}
		moduleRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))

		tmpDir, err := os.MkdirTemp("", "fv-test-*")
		if err != nil {
			fvBinaryErr = err
			return
		}
		fvBinary = filepath.Join(tmpDir, "fv")

		cmd := exec.Command("go", "build", "-o", fvBinary, "./cmd/fv")
		cmd.Dir = moduleRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			fvBinaryErr = &buildError{output: string(output), err: err}
			return
		}
	})
	if fvBinaryErr != nil {
		t.Fatalf("failed to build fv: %v", fvBinaryErr)
	}
	return fvBinary
}

type buildError struct {
	output string
	err    error
}

func (e *buildError) Error() string {
	return e.err.Error() + ": " + e.output
}

// workspace is a temp directory with a settings file pointing at a local
// SQLite deal store, and the environment fv runs with.
type workspace struct {
	dir string
	env []string
}

func newWorkspace(t *testing.T, openAIURL string) *workspace {
	t.Helper()
	dir := t.TempDir()

	settings := "deal_source: sqlite\ndeal_db: " + filepath.Join(dir, "deals.db") + "\n"
	settingsPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(settingsPath, []byte(settings), 0644); err != nil {
		t.Fatal(err)
	}

	var env []string
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		switch name {
		case "SLACK_BOT_TOKEN", "SLACK_SIGNING_SECRET", "OPENAI_API_KEY", "HUBSPOT_API_KEY",
			"OPENAI_BASE_URL", "HUBSPOT_BASE_URL", "FV_CONFIG", "PORT", "XDG_CONFIG_HOME":
			continue
		}
		env = append(env, kv)
	}
	env = append(env,
		"FV_CONFIG="+settingsPath,
		"XDG_CONFIG_HOME="+dir,
		"OPENAI_API_KEY=sk-test-0123456789",
		"OPENAI_BASE_URL="+openAIURL+"/",
	)
	return &workspace{dir: dir, env: env}
}

// run executes fv in the workspace and returns stdout, stderr and the exit code.
func (w *workspace) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(getFVBinary(t), args...)
	cmd.Dir = w.dir
	cmd.Env = w.env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return stdout.String(), stderr.String(), exitErr.ExitCode()
		}
		t.Fatalf("running fv: %v", err)
	}
	return stdout.String(), stderr.String(), 0
}

// mustRun is run that fails the test on a non-zero exit.
func (w *workspace) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, code := w.run(t, args...)
	if code != 0 {
		t.Fatalf("fv %s exited %d\nstdout: %s\nstderr: %s", strings.Join(args, " "), code, stdout, stderr)
	}
	return stdout
}

// fakeOpenAI answers chat completions. Extraction requests get the response
// registered for their user text (or all-null); narrative requests get a
// fixed three-bullet answer.
type fakeOpenAI struct {
	mu          sync.Mutex
	extractions map[string]string
	narratives  []string // user text of each narrative request
}

const fakeNarrative = "- Pipeline is thin\n- Two deals carry the quarter\n- Nothing closes in April\nRecommendation: add pipeline."

func newFakeOpenAI(t *testing.T, extractions map[string]string) (*fakeOpenAI, string) {
	t.Helper()
	f := &fakeOpenAI{extractions: extractions}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func (f *fakeOpenAI) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	system := req.Messages[0].Content
	user := ""
	if len(req.Messages) > 1 {
		user = req.Messages[1].Content
	}

	var content string
	f.mu.Lock()
	if strings.Contains(system, "extract these things") {
		content = f.extractions[user]
		if content == "" {
			content = `{"target": null, "timeframe": null, "start": null, "end": null}`
		}
	} else {
		f.narratives = append(f.narratives, user)
		content = fakeNarrative
	}
	f.mu.Unlock()

	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 20},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (f *fakeOpenAI) narrativeRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.narratives...)
}
