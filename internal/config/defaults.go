package config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		DataDir:      "data",
		LogLevel:     LogInfo,
		AuthRequired: false,
		Realtime:     true,
		CloudSync: CloudSyncConfig{
			Enabled:    false,
			DebounceMS: 1500,
		},
		Cache: CacheConfig{
			ProfileTTLMinutes:      10,
			ConversationTTLMinutes: 3,
		},
		Retention: RetentionConfig{
			MaxConversations:     50,
			MaxAgeDays:           90,
			SweepIntervalMinutes: 60,
		},
		Services: ServicesConfig{
			FailureThreshold:  5,
			CooldownSeconds:   30,
			RequestsPerWindow: 60,
			WindowSeconds:     60,
			TimeoutSeconds:    10,
		},
	}
}
