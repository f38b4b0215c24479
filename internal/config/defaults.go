package config

const (
	defaultDataDir              = "~/.local/share/tubewatch"
	defaultLogDir               = "~/.local/share/tubewatch/logs"
	defaultYouTubeBaseURL       = "https://www.googleapis.com/youtube/v3"
	defaultHubURL               = "https://pubsubhubbub.appspot.com/subscribe"
	defaultLeaseSeconds         = 864000 // 10 days
	defaultRenewalWindowDays    = 3
	defaultNotifierTimeout      = 10
	defaultTimezone             = "Asia/Tokyo"
	defaultMembersOnlyPolicy    = "all"
	defaultUploadRetentionHours = 24
	defaultStaleLiveMinutes     = 10
	defaultReconcileIntervalMin = 360
	defaultBackoffBaseMS        = 3000
	defaultBackoffCapMS         = 30000
	defaultMaxAttempts          = 3
	defaultPurgeIntervalMin     = 60
	defaultServerBind           = "127.0.0.1:7499"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		YouTube: YouTube{
			BaseURL: defaultYouTubeBaseURL,
		},
		Hub: Hub{
			URL:               defaultHubURL,
			LeaseSeconds:      defaultLeaseSeconds,
			RenewalWindowDays: defaultRenewalWindowDays,
		},
		Notifier: Notifier{
			RequestTimeout:       defaultNotifierTimeout,
			Timezone:             defaultTimezone,
			MembersOnlyPolicy:    defaultMembersOnlyPolicy,
			UploadRetentionHours: defaultUploadRetentionHours,
			StaleLiveMinutes:     defaultStaleLiveMinutes,
		},
		Reconciler: Reconciler{
			IntervalMinutes:  defaultReconcileIntervalMin,
			BackoffBaseMS:    defaultBackoffBaseMS,
			BackoffCapMS:     defaultBackoffCapMS,
			MaxAttempts:      defaultMaxAttempts,
			PurgeIntervalMin: defaultPurgeIntervalMin,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
