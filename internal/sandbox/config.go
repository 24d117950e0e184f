// Package sandbox manages isolated execution environments for tool calls that
// should not touch the host filesystem or network directly.
package sandbox

import "errors"

// ErrSandboxDisabled is returned by Manager.Get when the sandbox mode is "off"
// for the requested key; callers fall back to host execution.
var ErrSandboxDisabled = errors.New("sandbox: disabled")

// Mode controls which turns get a sandbox.
type Mode string

const (
	ModeOff     Mode = "off"      // never sandbox
	ModeNonMain Mode = "non-main" // sandbox subagent/cron/delegate turns, not the main session
	ModeAll     Mode = "all"      // sandbox every turn
)

// Access controls how much of the agent workspace a sandbox can see.
type Access string

const (
	AccessNone Access = "none"
	AccessRO   Access = "ro"
	AccessRW   Access = "rw"
)

// Scope controls container reuse across turns.
type Scope string

const (
	ScopeSession Scope = "session" // one container per session key
	ScopeAgent   Scope = "agent"   // one container shared by all sessions of an agent
	ScopeShared  Scope = "shared"  // one container shared process-wide
)

// Config mirrors config.SandboxConfig with defaults resolved.
type Config struct {
	Mode            Mode
	Image           string
	WorkspaceAccess Access
	Scope           Scope
	MemoryMB        int
	CPUs            float64
	TimeoutSec      int
	NetworkEnabled  bool
	ReadOnlyRoot    bool
	SetupCommand    string
	Env             map[string]string

	User           string
	TmpfsSizeMB    int
	MaxOutputBytes int

	IdleHours        int
	MaxAgeDays       int
	PruneIntervalMin int
}

// DefaultConfig returns the spec-default sandbox configuration (sandboxing off).
func DefaultConfig() Config {
	return Config{
		Mode:            ModeOff,
		Image:           "bashclaw-sandbox:bookworm-slim",
		WorkspaceAccess: AccessRW,
		Scope:           ScopeSession,
		MemoryMB:        512,
		CPUs:            1.0,
		TimeoutSec:      300,
		NetworkEnabled:  false,
		ReadOnlyRoot:    true,
		MaxOutputBytes:  1 << 20,
		IdleHours:       24,
		MaxAgeDays:      7,
		PruneIntervalMin: 5,
	}
}

// AppliesTo reports whether this config requires a sandbox for the given turn.
func (c Config) AppliesTo(isMainSession bool) bool {
	switch c.Mode {
	case ModeAll:
		return true
	case ModeNonMain:
		return !isMainSession
	default:
		return false
	}
}
