package bootstrap

import (
	"os"
	"path/filepath"

	"github.com/bashclaw/bashclaw/internal/sessions"
)

// ContextFile is one file merged into the system prompt (spec "System
// prompt assembly", step 2).
type ContextFile struct {
	Path    string
	Content string
}

// TruncateConfig bounds how much of each context file — and how much in
// total — is folded into the system prompt.
type TruncateConfig struct {
	MaxCharsPerFile int
	TotalMaxChars   int
}

// workspaceFiles are loaded from the agent's workspace directory.
var workspaceFiles = []string{IdentityFile, SoulFile, UserFile, MemoryFile, ToolsFile, AgentsFile}

// stateFiles are loaded from the agent's state directory.
var stateFiles = []string{HeartbeatFile, BootFile, BootstrapFile}

// subagentWorkspaceFiles is the reduced file set subagents get (spec: "For
// subagents, only AGENTS.md and TOOLS.md from the workspace are loaded").
var subagentWorkspaceFiles = []string{AgentsFile, ToolsFile}

// LoadWorkspaceFiles reads the agent's workspace and state-dir bootstrap
// files in prompt-assembly order, skipping any that don't exist. Pass an
// empty stateDir to skip the state-dir files (e.g. when loading for a
// subagent, which only gets AGENTS.md/TOOLS.md — see LoadSubagentFiles).
func LoadWorkspaceFiles(workspaceDir, stateDir string) []ContextFile {
	var files []ContextFile
	for _, name := range workspaceFiles {
		if content, ok := readIfExists(filepath.Join(workspaceDir, name)); ok {
			files = append(files, ContextFile{Path: name, Content: content})
		}
	}
	if stateDir == "" {
		return files
	}
	for _, name := range stateFiles {
		if content, ok := readIfExists(filepath.Join(stateDir, name)); ok {
			files = append(files, ContextFile{Path: name, Content: content})
		}
	}
	return files
}

// LoadSubagentFiles reads only AGENTS.md and TOOLS.md from workspaceDir —
// the reduced context a subagent receives (no skills, no memory-recall, no
// state-dir files).
func LoadSubagentFiles(workspaceDir string) []ContextFile {
	var files []ContextFile
	for _, name := range subagentWorkspaceFiles {
		if content, ok := readIfExists(filepath.Join(workspaceDir, name)); ok {
			files = append(files, ContextFile{Path: name, Content: content})
		}
	}
	return files
}

func readIfExists(path string) (string, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// BuildContextFiles applies per-file and total truncation to raw, in order,
// then returns the (possibly truncated) set. Once the running total would
// exceed cfg.TotalMaxChars, remaining files are dropped entirely rather than
// included empty.
func BuildContextFiles(raw []ContextFile, cfg TruncateConfig) []ContextFile {
	maxPerFile := cfg.MaxCharsPerFile
	if maxPerFile <= 0 {
		maxPerFile = DefaultMaxCharsPerFile
	}
	totalMax := cfg.TotalMaxChars
	if totalMax <= 0 {
		totalMax = DefaultTotalMaxChars
	}

	var out []ContextFile
	total := 0
	for _, f := range raw {
		content := truncateHeadTail(f.Content, maxPerFile)
		if total+len(content) > totalMax {
			remaining := totalMax - total
			if remaining <= 0 {
				break
			}
			content = truncateHeadTail(content, remaining)
		}
		out = append(out, ContextFile{Path: f.Path, Content: content})
		total += len(content)
		if total >= totalMax {
			break
		}
	}
	return out
}

// truncateHeadTail keeps the first 70% and last 20% of the space left in max
// after the gap marker, joined by that marker, when s exceeds max — the scheme used for oversized bootstrap
// files so neither the opening instructions nor the most recent state at
// the end of the file are lost.
func truncateHeadTail(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}

	const gapMarker = "\n\n...[truncated]...\n\n"
	budget := max - len(gapMarker)
	if budget <= 0 {
		return s[:max]
	}

	headLen := int(float64(budget) * 0.7)
	tailLen := int(float64(budget) * 0.2)
	if headLen+tailLen >= len(s) {
		return s
	}

	return s[:headLen] + gapMarker + s[len(s)-tailLen:]
}

// IsSubagentSession reports whether sessionKey belongs to a subagent run.
func IsSubagentSession(sessionKey string) bool {
	return sessions.IsSubagentSession(sessionKey)
}

// IsCronSession reports whether sessionKey belongs to a cron run.
func IsCronSession(sessionKey string) bool {
	return sessions.IsCronSession(sessionKey)
}
