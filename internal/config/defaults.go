package config

const (
	defaultMediaRoot          = "~/.local/share/videoflix/media"
	defaultDataDir            = "~/.local/share/videoflix"
	defaultLogDir             = "~/.local/share/videoflix/logs"
	defaultFFmpegBinary       = "ffmpeg"
	defaultCRF                = 23
	defaultPreset             = "medium"
	defaultAudioBitrate       = "128k"
	defaultSegmentSeconds     = 6
	defaultWorkers            = 1
	defaultPollInterval       = 2
	defaultErrorRetryInterval = 10
	defaultMaxAttempts        = 3
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	mediaRootEnv              = "VIDEOFLIX_MEDIA_ROOT"
	defaultAssetLocking       = true
	defaultJobTimeoutSeconds  = 0
	maxSegmentSeconds         = 60
	maxResolutionHeight       = 4320
	minResolutionHeight       = 144
)

var (
	defaultResolutions    = []int{480, 720, 1080}
	defaultBackoffSeconds = []int{10, 30, 60}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaRoot: defaultMediaRoot,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
		},
		Encoder: Encoder{
			FFmpegBinary:   defaultFFmpegBinary,
			Resolutions:    append([]int(nil), defaultResolutions...),
			CRF:            defaultCRF,
			Preset:         defaultPreset,
			AudioBitrate:   defaultAudioBitrate,
			SegmentSeconds: defaultSegmentSeconds,
		},
		Queue: Queue{
			Workers:            defaultWorkers,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxAttempts:        defaultMaxAttempts,
			BackoffSeconds:     append([]int(nil), defaultBackoffSeconds...),
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			JobTimeout:         defaultJobTimeoutSeconds,
			AssetLocking:       defaultAssetLocking,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
