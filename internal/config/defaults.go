package config

const (
	defaultConfigPath                = "~/.config/vodpipe/config.toml"
	defaultStateDir                  = "~/.local/share/vodpipe"
	defaultLogDir                    = "~/.local/share/vodpipe/logs"
	defaultAPIBind                   = "127.0.0.1:7490"
	defaultBackendTimeout            = 900
	defaultUserID                    = "1"
	defaultShadowMode                = "server-controlled"
	defaultSegmentDuration           = 30
	defaultOverlap                   = 10
	defaultFPS                       = 2
	defaultSegmentIndex              = "0001"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 30
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultPolishConcurrency         = 2
	defaultEventsReconnectDelay      = 5
	defaultEventsBufferSize          = 256
	defaultNotifyRequestTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Backend: Backend{
			RequestTimeout: defaultBackendTimeout,
			UserID:         defaultUserID,
			ShadowMode:     defaultShadowMode,
		},
		Segmenting: Segmenting{
			SegmentDuration:     defaultSegmentDuration,
			Overlap:             defaultOverlap,
			FPS:                 defaultFPS,
			DefaultSegmentIndex: defaultSegmentIndex,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			PolishConcurrency:  defaultPolishConcurrency,
			ForcePolish:        true,
		},
		Events: Events{
			Enabled:        true,
			ReconnectDelay: defaultEventsReconnectDelay,
			BufferSize:     defaultEventsBufferSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			StageFailures:  true,
			Pipeline:       true,
			ClipDone:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
