package config

const (
	defaultBaseDir  = "~/.local/share/reelsmith/stories"
	defaultMusicDir = "~/.local/share/reelsmith/music"
	defaultLogDir   = "~/.local/share/reelsmith/logs"

	defaultTextGenBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultTextGenModel          = "gpt-4o-mini"
	defaultTextGenTimeoutSeconds = 120

	defaultTTSBaseURL               = "https://api.elevenlabs.io/v1/text-to-speech"
	defaultTTSVoice                 = "onwK4e9ZLuTAKqWW03F9"
	defaultTTSTimeoutSeconds        = 120
	defaultTTSRequestSpacingSeconds = 30

	defaultImageProvider = "leonardo"
	defaultImageWorkers  = 0

	defaultLeonardoBaseURL             = "https://cloud.leonardo.ai/api/rest/v1"
	defaultLeonardoModelID             = "de7d3faf-762f-48e0-b3b7-9d0ac3a3fcf3"
	defaultLeonardoWidth               = 864
	defaultLeonardoHeight              = 1536
	defaultLeonardoContrast            = 3.5
	defaultLeonardoPollIntervalSeconds = 40
	defaultLeonardoMaxPolls            = 7
	defaultLeonardoRequestsPerMinute   = 30
	defaultLeonardoMaxAttempts         = 3

	defaultFluxBaseURL        = "https://api-inference.huggingface.co/models/black-forest-labs/FLUX.1-dev"
	defaultFluxWidth          = 864
	defaultFluxHeight         = 1536
	defaultFluxTimeoutSeconds = 300

	defaultLocalSDBinary         = "sdcpp"
	defaultLocalSDWidth          = 864
	defaultLocalSDHeight         = 1536
	defaultLocalSDSteps          = 30
	defaultLocalSDTimeoutSeconds = 900

	defaultImageOrder = "name"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BaseDir:  defaultBaseDir,
			MusicDir: defaultMusicDir,
			LogDir:   defaultLogDir,
		},
		TextGen: TextGen{
			BaseURL:        defaultTextGenBaseURL,
			Model:          defaultTextGenModel,
			TimeoutSeconds: defaultTextGenTimeoutSeconds,
		},
		TTS: TTS{
			BaseURL:               defaultTTSBaseURL,
			Voice:                 defaultTTSVoice,
			TimeoutSeconds:        defaultTTSTimeoutSeconds,
			RequestSpacingSeconds: defaultTTSRequestSpacingSeconds,
		},
		Images: Images{
			Provider: defaultImageProvider,
			Fallback: true,
			Workers:  defaultImageWorkers,
			Leonardo: Leonardo{
				BaseURL:             defaultLeonardoBaseURL,
				ModelID:             defaultLeonardoModelID,
				Width:               defaultLeonardoWidth,
				Height:              defaultLeonardoHeight,
				Contrast:            defaultLeonardoContrast,
				Ultra:               true,
				PollIntervalSeconds: defaultLeonardoPollIntervalSeconds,
				MaxPolls:            defaultLeonardoMaxPolls,
				RequestsPerMinute:   defaultLeonardoRequestsPerMinute,
				MaxAttempts:         defaultLeonardoMaxAttempts,
			},
			Flux: Flux{
				BaseURL:        defaultFluxBaseURL,
				Width:          defaultFluxWidth,
				Height:         defaultFluxHeight,
				TimeoutSeconds: defaultFluxTimeoutSeconds,
			},
			LocalSD: LocalSD{
				Binary:         defaultLocalSDBinary,
				Width:          defaultLocalSDWidth,
				Height:         defaultLocalSDHeight,
				Steps:          defaultLocalSDSteps,
				TimeoutSeconds: defaultLocalSDTimeoutSeconds,
			},
		},
		Video: Video{
			ImageOrder: defaultImageOrder,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
