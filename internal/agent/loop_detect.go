package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// toolLoopState detects an agent stuck calling the same tool with the same
// arguments repeatedly without making progress, so runLoop can break out
// instead of burning iterations (and tokens) indefinitely.
type toolLoopState struct {
	lastHash    string
	repeatCount int
	lastResult  string
}

const (
	loopWarnThreshold     = 3 // repeats before a warning nudge is injected
	loopCriticalThreshold = 5 // repeats before the run is aborted
)

// record hashes a tool call's name+arguments and returns the hash, tracking
// how many times in a row this exact call has repeated.
func (s *toolLoopState) record(name string, args map[string]interface{}) string {
	hash := hashToolCall(name, args)
	if hash == s.lastHash {
		s.repeatCount++
	} else {
		s.lastHash = hash
		s.repeatCount = 1
	}
	return hash
}

// recordResult stores the result text for the most recent call. detect does
// not consult it: loops are detected from repeated name+arguments alone.
func (s *toolLoopState) recordResult(hash, forLLM string) {
	if hash == s.lastHash {
		s.lastResult = forLLM
	}
}

// detect returns a non-empty level ("warning" or "critical") once the
// repeat count for hash crosses a threshold, along with a message to either
// inject into the conversation (warning) or use as the final response
// (critical).
func (s *toolLoopState) detect(name, hash string) (level, message string) {
	if hash != s.lastHash {
		return "", ""
	}
	switch {
	case s.repeatCount >= loopCriticalThreshold:
		return "critical", fmt.Sprintf("tool %q repeated %d times with identical arguments and no progress", name, s.repeatCount)
	case s.repeatCount >= loopWarnThreshold:
		return "warning", fmt.Sprintf("You've called %s with the same arguments %d times in a row. "+
			"Re-examine the result above — repeating the exact same call won't produce a different outcome. "+
			"Try a different approach or explain to the user what's blocking you.", name, s.repeatCount)
	default:
		return "", ""
	}
}

// hashToolCall produces a stable hash of a tool call's name and arguments,
// independent of map key iteration order.
func hashToolCall(name string, args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]interface{}, len(args))
	for _, k := range keys {
		ordered[k] = args[k]
	}
	argsJSON, _ := json.Marshal(ordered)

	sum := sha256.Sum256([]byte(name + ":" + string(argsJSON)))
	return hex.EncodeToString(sum[:])
}
