package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// commandPayload is what evalCommand feeds an external evaluator on stdin.
type commandPayload struct {
	Event          string `json:"event"`
	SourceAgentKey string `json:"source_agent_key"`
	TargetAgentKey string `json:"target_agent_key"`
	UserID         string `json:"user_id"`
	Content        string `json:"content"`
	Task           string `json:"task"`
}

// commandVerdict is what an external evaluator is expected to print to
// stdout as a single JSON object.
type commandVerdict struct {
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback"`
}

// evalCommand runs cfg.Command as a subprocess, writing the hook context as
// JSON to stdin and parsing a {"passed":bool,"feedback":string} verdict from
// stdout. Grounded on the same exec.CommandContext + captured-buffer pattern
// used by the shell tool's host execution path.
func evalCommand(ctx context.Context, cfg HookConfig, hctx HookContext) (HookResult, error) {
	if cfg.Command == "" {
		return HookResult{}, fmt.Errorf("hooks: command evaluator %q has no command", cfg.Name)
	}

	payload, err := json.Marshal(commandPayload{
		Event:          hctx.Event,
		SourceAgentKey: hctx.SourceAgentKey,
		TargetAgentKey: hctx.TargetAgentKey,
		UserID:         hctx.UserID,
		Content:        hctx.Content,
		Task:           hctx.Task,
	})
	if err != nil {
		return HookResult{}, fmt.Errorf("hooks: encode payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cfg.Command)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return HookResult{}, fmt.Errorf("hooks: command %q: %w: %s", cfg.Command, err, strings.TrimSpace(stderr.String()))
	}

	var verdict commandVerdict
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &verdict); err != nil {
		return HookResult{}, fmt.Errorf("hooks: command %q produced no parseable verdict: %w", cfg.Command, err)
	}
	return HookResult{Passed: verdict.Passed, Feedback: verdict.Feedback}, nil
}

// evalContains is a dependency-free evaluator: it passes only if hctx.Content
// contains every string in cfg.Contains. Useful for cheap structural gates
// ("must mention a next step") that don't warrant an external process.
func evalContains(_ context.Context, cfg HookConfig, hctx HookContext) (HookResult, error) {
	var missing []string
	for _, want := range cfg.Contains {
		if !strings.Contains(hctx.Content, want) {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return HookResult{
			Passed:   false,
			Feedback: fmt.Sprintf("output is missing required content: %s", strings.Join(missing, ", ")),
		}, nil
	}
	return HookResult{Passed: true}, nil
}
