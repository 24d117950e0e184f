package agent

import "github.com/bashclaw/bashclaw/internal/providers"

// EstimateTokensWithCalibration estimates the token count of history using
// a per-message ratio calibrated from the provider's own usage on the last
// real call (lastPromptTokens over lastMsgCount messages), falling back to
// the chars/3 heuristic in EstimateTokens when no calibration data exists
// yet (e.g. the very first run in a session).
func EstimateTokensWithCalibration(history []providers.Message, lastPromptTokens, lastMsgCount int) int {
	if lastPromptTokens <= 0 || lastMsgCount <= 0 {
		return EstimateTokens(history)
	}

	ratio := float64(lastPromptTokens) / float64(lastMsgCount)
	return int(ratio * float64(len(history)))
}
