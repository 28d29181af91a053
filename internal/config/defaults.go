package config

const (
	defaultConfigPath            = "~/.config/sitekeeper/config.toml"
	defaultDataDir               = "~/.local/share/sitekeeper"
	defaultLogDir                = "~/.local/share/sitekeeper/logs"
	defaultAPIBind               = "127.0.0.1:7488"
	defaultAgentAPIPrefix        = "/wp-json/sitekeeper/v1"
	defaultConnectTimeoutSeconds = 10
	defaultRequestTimeoutSeconds = 15
	defaultEnqueueTimeoutSeconds = 30
	defaultTokenTTLSeconds       = 300
	defaultUserAgent             = "sitekeeper/dev"
	defaultMaxResponseBytes      = 8 << 20
	defaultPollInitialSeconds    = 2
	defaultPollMaxSeconds        = 10
	defaultPollTimeoutSeconds    = 900
	defaultMediaPerPage          = 50
	defaultMediaMaxPerPage       = 100
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 14
	defaultNotifyTimeoutSeconds  = 10

	// APITokenEnv overrides paths.api_token when set.
	APITokenEnv = "SITEKEEPER_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Agent: Agent{
			APIPrefix:             defaultAgentAPIPrefix,
			ConnectTimeoutSeconds: defaultConnectTimeoutSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			EnqueueTimeoutSeconds: defaultEnqueueTimeoutSeconds,
			TokenTTLSeconds:       defaultTokenTTLSeconds,
			UserAgent:             defaultUserAgent,
			MaxResponseBytes:      defaultMaxResponseBytes,
		},
		Polling: Polling{
			InitialIntervalSeconds: defaultPollInitialSeconds,
			MaxIntervalSeconds:     defaultPollMaxSeconds,
			TimeoutSeconds:         defaultPollTimeoutSeconds,
		},
		Media: Media{
			DefaultPerPage: defaultMediaPerPage,
			MaxPerPage:     defaultMediaMaxPerPage,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
	}
}
