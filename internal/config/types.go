package config

// Config is the root configuration structure for chkd.
// Serialised to ~/.chkd/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Engine   EngineConfig   `mapstructure:"engine"   json:"engine"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  json:"gateway"`
	Migrate  MigrateConfig  `mapstructure:"migrate"  json:"migrate"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path" json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn" json:"dsn"`
}

// EngineConfig controls worker coordination timing and concurrency.
type EngineConfig struct {
	// HeartbeatThresholdMs is the heartbeat age after which a working or
	// merging worker is stale; the sweeper raises one warning signal for it
	// and leaves its status unchanged.
	HeartbeatThresholdMs int64 `mapstructure:"heartbeat_threshold_ms" json:"heartbeat_threshold_ms"`
	// HeartbeatSweepMs is the sweeper's poll interval.
	HeartbeatSweepMs int64 `mapstructure:"heartbeat_sweep_ms" json:"heartbeat_sweep_ms"`
	// GitConcurrency bounds simultaneous git subprocess invocations.
	GitConcurrency int `mapstructure:"git_concurrency" json:"git_concurrency"`
	// MergeLockTimeoutMs bounds how long a merge waits to acquire the
	// per-repository merge lock before failing with a timeout error.
	MergeLockTimeoutMs int64 `mapstructure:"merge_lock_timeout_ms" json:"merge_lock_timeout_ms"`
	// DefaultBranch is the base branch used for merges and worktree
	// creation when a repository has no DefaultBranch of its own.
	DefaultBranch string `mapstructure:"default_branch" json:"default_branch"`
}

// GitConfig holds global git behaviour defaults. Per-repository overrides
// live on models.Repository itself.
type GitConfig struct {
	// FetchSchedule is an optional cron expression for periodically
	// fetching each tracked repository's default branch. Empty disables
	// the scheduled fetch entirely.
	FetchSchedule string `mapstructure:"fetch_schedule" json:"fetch_schedule"`
	// WorktreeRoot is the directory `chkd doctor` checks for writability
	// (default: <data dir>/worktrees). Per-worker worktrees are not created
	// here; the driver places them beside the repository checkout.
	WorktreeRoot string `mapstructure:"worktree_root" json:"worktree_root"`
}

// GatewayConfig controls the persistent HTTP gateway daemon.
type GatewayConfig struct {
	// Port is the localhost HTTP port the gateway listens on (default: 6080).
	Port int `mapstructure:"port" json:"port"`
}

// MigrateConfig controls the legacy markdown checklist importer.
type MigrateConfig struct {
	// SpecFile is the path, relative to a repository's root, of the
	// markdown checklist to import by default.
	SpecFile string `mapstructure:"spec_file" json:"spec_file"`
}
