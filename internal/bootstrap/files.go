package bootstrap

// Workspace and state-dir file names assembled into the system prompt
// (spec "System prompt assembly", step 2). IdentityFile, SoulFile, UserFile,
// MemoryFile, ToolsFile, and AgentsFile live in the agent's workspace;
// HeartbeatFile, BootFile, and BootstrapFile live in the agent's state dir.
const (
	IdentityFile  = "IDENTITY.md"
	SoulFile      = "SOUL.md"
	UserFile      = "USER.md"
	MemoryFile    = "MEMORY.md"
	ToolsFile     = "TOOLS.md"
	AgentsFile    = "AGENTS.md"
	HeartbeatFile = "HEARTBEAT.md"
	BootFile      = "BOOT.md"
	BootstrapFile = "BOOTSTRAP.md"
)

// DefaultMaxCharsPerFile caps a single context file's contribution to the
// system prompt before it is truncated.
const DefaultMaxCharsPerFile = 20000

// DefaultTotalMaxChars caps the combined size of every context file merged
// into the system prompt, truncating files (in the order they're passed)
// once the running total would exceed it.
const DefaultTotalMaxChars = 24000
