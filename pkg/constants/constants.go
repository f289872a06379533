// Package constants holds fixed limits, default paths, and enumerations
// shared across Gandalf's components.
package constants

import "time"

// ServerName and ServerVersion identify this server in the MCP
// "initialize" handshake.
const (
	ServerName     = "gandalf"
	ServerVersion  = "0.1.0"
	ProtocolVersion = "2024-11-05"
)

// Security limits (C2).
const (
	MaxStringLength = 50000
	MaxQueryLength  = 100
	MaxArrayLength  = 100
	MaxPathDepth    = 20
	MaxJSONParamsBytes = 1 << 20 // 1 MiB raw-params size cap
)

// BlockedExtensions may never be accepted as a file_types filter entry.
// The walk itself does not consult this list: an unfiltered
// list_project_files call still returns files with these extensions.
var BlockedExtensions = map[string]bool{
	"exe": true, "bat": true, "cmd": true, "scr": true, "vbs": true,
	"ps1": true, "dll": true, "com": true, "msi": true, "sh": true,
	"app": true, "deb": true, "rpm": true,
}

// BlockedSystemPrefixes are absolute path prefixes ProjectRoot and every
// resolved path must not fall under, except where ProjectRoot itself
// legitimately lies beneath one of them.
var BlockedSystemPrefixes = []string{
	"/etc", "/sys", "/proc", "/dev", "/root", "/boot",
	"/var/log", "/var/run", "/tmp", "/usr/bin", "/usr/sbin",
}

// Filesystem indexer limits (C5).
const (
	DefaultMaxFilesPerListing = 5000
	DefaultMaxFileSizeBytes   = 10 << 20 // 10 MiB
)

// Git activity tracker defaults (C6).
const (
	DefaultGitCacheTTL     = 300 * time.Second
	DefaultGitLookbackDays = 30
	DefaultGitTimeout      = 10 * time.Second
)

// Cache defaults (C4).
const (
	DefaultCacheNamespaceSize = 500
	DefaultCacheTTL           = 15 * time.Minute
	ConversationCacheTTL      = 10 * time.Minute
)

// Tool-call budget (§5).
const DefaultToolCallBudget = 30 * time.Second

// DefaultConversationScoringLookback is how many recent conversations'
// prompt/response bodies (C10) feed the conversation_mention relevance
// signal (C7, §4.7) on each list_project_files call.
const DefaultConversationScoringLookback = 50

// Worker pool sizing (§5): min(8, 2*CPU) is computed at runtime in
// pkg/aggregator; this is the hard ceiling.
const MaxWorkerPoolSize = 8

// EnvGandalfHome, etc. are the environment variables the core recognizes (§6).
const (
	EnvGandalfHome        = "GANDALF_HOME"
	EnvWeightsFile        = "GANDALF_WEIGHTS_FILE"
	EnvWorkspaceFolders   = "WORKSPACE_FOLDER_PATHS"
	EnvPWD                = "PWD"
	EnvMCPDebug           = "MCP_DEBUG"
	EnvMCPServerName      = "MCP_SERVER_NAME"
)

// GandalfHomeDirName is the fixed home directory name under the user's
// home directory; §9 mandates ignoring MCP_SERVER_NAME for this derivation.
const GandalfHomeDirName = ".gandalf"
