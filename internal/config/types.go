package config

// LogLevel controls the verbosity of structured logging.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
)

// Config is the top-level userhub configuration, corresponding to .userhub.yml.
type Config struct {
	Port     int      `yaml:"port" koanf:"port"`
	DataDir  string   `yaml:"data_dir" koanf:"data_dir"`
	LogLevel LogLevel `yaml:"log_level" koanf:"log_level"`

	// AuthRequired gates the JWT middleware on mutating routes.
	AuthRequired bool   `yaml:"auth_required" koanf:"auth_required"`
	JWTSecret    string `yaml:"jwt_secret" koanf:"jwt_secret"`

	Realtime  bool            `yaml:"realtime" koanf:"realtime"`
	CloudSync CloudSyncConfig `yaml:"cloud_sync" koanf:"cloud_sync"`
	Cache     CacheConfig     `yaml:"cache" koanf:"cache"`
	Retention RetentionConfig `yaml:"retention" koanf:"retention"`
	Services  ServicesConfig  `yaml:"services" koanf:"services"`
}

// CloudSyncConfig controls mirroring of profile writes to a central instance.
type CloudSyncConfig struct {
	Enabled    bool   `yaml:"enabled" koanf:"enabled"`
	BaseURL    string `yaml:"base_url" koanf:"base_url"`
	DebounceMS int    `yaml:"debounce_ms" koanf:"debounce_ms"`
}

// CacheConfig holds read-through cache TTLs.
type CacheConfig struct {
	ProfileTTLMinutes      int `yaml:"profile_ttl_minutes" koanf:"profile_ttl_minutes"`
	ConversationTTLMinutes int `yaml:"conversation_ttl_minutes" koanf:"conversation_ttl_minutes"`
}

// RetentionConfig bounds how much conversation history is kept per user.
type RetentionConfig struct {
	MaxConversations     int `yaml:"max_conversations" koanf:"max_conversations"`
	MaxAgeDays           int `yaml:"max_age_days" koanf:"max_age_days"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes" koanf:"sweep_interval_minutes"`
}

// ServicesConfig tunes the outbound circuit breaker and rate limiter.
type ServicesConfig struct {
	FailureThreshold  int `yaml:"failure_threshold" koanf:"failure_threshold"`
	CooldownSeconds   int `yaml:"cooldown_seconds" koanf:"cooldown_seconds"`
	RequestsPerWindow int `yaml:"requests_per_window" koanf:"requests_per_window"`
	WindowSeconds     int `yaml:"window_seconds" koanf:"window_seconds"`
	TimeoutSeconds    int `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}
