package bootstrap

import (
	"time"

	"go.uber.org/zap"

	"micscribe/internal/audio"
	"micscribe/internal/capability"
	"micscribe/internal/config"
	"micscribe/internal/logging"
	"micscribe/internal/ports"
	"micscribe/internal/providers/deepgram"
	"micscribe/internal/providers/openai"
	"micscribe/internal/recognizer"
	"micscribe/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Session *usecase.TranscriptionSession
	Config  config.Config
	Logger  *zap.Logger
	Backend string
}

// Build wires all backend dependencies for the current runtime.
func Build(sink ports.StateSink, clipboard ports.Clipboard) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return Services{}, err
	}
	if cfg.Path != "" {
		logger.Info("configuration file loaded", zap.String("path", cfg.Path))
	}

	detector := capability.NewDetector(
		capability.Order(backends(cfg, logger), cfg.Recognition.Backends),
		logger,
	)
	session := usecase.NewTranscriptionSession(
		detector,
		clipboard,
		sink,
		logger,
		usecase.Config{Language: cfg.Recognition.Language},
	)

	return Services{
		Session: session,
		Config:  cfg,
		Logger:  logger,
		Backend: detector.Selected(),
	}, nil
}

func backends(cfg config.Config, logger *zap.Logger) []capability.Backend {
	capture := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)
	recorderFound := func() bool { return capability.CommandAvailable(capture.Command()) }

	dg := deepgram.NewProvider(deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		APIBaseURL:  cfg.Deepgram.APIBaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Deepgram.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
	}, logger)

	oa := openai.NewProvider(openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		APIBaseURL:     cfg.OpenAI.APIBaseURL,
		Model:          cfg.OpenAI.Model,
		NoiseReduction: cfg.OpenAI.NoiseReduction,
		Timeout:        time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
	}, logger)

	return []capability.Backend{
		{
			Name:      "deepgram",
			Available: func() bool { return dg.Configured() && recorderFound() },
			Build: func() ports.RecognitionProvider {
				return recognizer.New("deepgram", capture, dg, recognizerConfig(cfg, cfg.Audio.SampleRate, cfg.Audio.Channels), logger)
			},
		},
		{
			Name:      "openai",
			Available: func() bool { return oa.Configured() && recorderFound() },
			Build: func() ports.RecognitionProvider {
				return recognizer.New("openai", capture, oa, recognizerConfig(cfg, openai.SampleRate, 1), logger)
			},
		},
	}
}

func recognizerConfig(cfg config.Config, sampleRate int, channels int) recognizer.Config {
	return recognizer.Config{
		Audio: ports.AudioConfig{
			SampleRate:  sampleRate,
			Channels:    channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		Streaming: ports.StreamingConfig{
			SampleRate: sampleRate,
			Channels:   channels,
			Encoding:   "linear16",
		},
		ChunkSize:       cfg.Session.ChunkSize,
		NoSpeechTimeout: cfg.Recognition.NoSpeechTimeout(),
		FinishTimeout:   cfg.Recognition.FinishTimeout(),
	}
}
