package recognizer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"micscribe/internal/domain"
	"micscribe/internal/ports"
)

// Config controls capture and streaming behavior for one backend.
type Config struct {
	Audio           ports.AudioConfig
	Streaming       ports.StreamingConfig
	ChunkSize       int
	NoSpeechTimeout time.Duration
	FinishTimeout   time.Duration
}

// Recognizer implements ports.RecognitionProvider on top of a microphone capture and a
// streaming transcription transport.
type Recognizer struct {
	audio     ports.AudioCapture
	transport ports.TranscriptionProvider
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	recCfg   ports.RecognitionConfig
	listener ports.RecognitionListener
	current  *activeCapture

	// Final text has been delivered since the last ResetTranscript, across captures.
	transcribed bool
}

type activeCapture struct {
	id     string
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}

	stopOnce sync.Once
}

func (a *activeCapture) requestStop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func New(name string, audio ports.AudioCapture, transport ports.TranscriptionProvider, cfg Config, logger *zap.Logger) *Recognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.FinishTimeout <= 0 {
		cfg.FinishTimeout = 4 * time.Second
	}
	return &Recognizer{
		audio:     audio,
		transport: transport,
		cfg:       cfg,
		logger:    logger.Named("recognizer").With(zap.String("backend", name)),
		recCfg:    ports.RecognitionConfig{Continuous: true, InterimResults: true},
	}
}

func (r *Recognizer) Configure(cfg ports.RecognitionConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recCfg = cfg
}

func (r *Recognizer) SetListener(listener ports.RecognitionListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = listener
}

// Start launches a capture session and returns immediately. Callbacks report its progress.
func (r *Recognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return ErrAlreadyStarted
	}
	if r.listener == nil {
		return ErrNoListener
	}

	ctx, cancel := context.WithCancel(context.Background())
	active := &activeCapture{
		id:     uuid.NewString(),
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	r.current = active

	go r.run(ctx, active, r.recCfg, r.listener)
	return nil
}

// Stop ends microphone capture and lets the transport flush pending results.
func (r *Recognizer) Stop() {
	if active := r.active(); active != nil {
		active.requestStop()
	}
}

// Abort tears the session down without waiting for pending results and returns once
// the microphone and stream are released. It must not be called from a listener callback.
func (r *Recognizer) Abort() {
	if active := r.active(); active != nil {
		active.cancel()
		<-active.done
	}
}

// ResetTranscript starts the next final result without a separator. Listeners call it
// after discarding the text accumulated so far.
func (r *Recognizer) ResetTranscript() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribed = false
}

func (r *Recognizer) separate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcribed
}

func (r *Recognizer) markTranscribed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribed = true
}

func (r *Recognizer) active() *activeCapture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Recognizer) release(active *activeCapture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == active {
		r.current = nil
	}
}

func (r *Recognizer) run(ctx context.Context, active *activeCapture, recCfg ports.RecognitionConfig, listener ports.RecognitionListener) {
	logger := r.logger.With(zap.String("capture_id", active.id))
	// The capture stays registered until the listener has seen the end.
	defer func() {
		active.cancel()
		listener.OnSessionEnded()
		r.release(active)
		close(active.done)
	}()

	report := func(err error, fallback string) {
		if ctx.Err() != nil {
			return
		}
		code := codeFor(err, fallback)
		logger.Warn("recognition session failed", zap.String("code", code), zap.Error(err))
		listener.OnError(code, err.Error())
	}

	streamCfg := r.cfg.Streaming
	streamCfg.Language = recCfg.Language
	streamCfg.InterimResults = recCfg.InterimResults

	stream, err := r.transport.StartStreaming(ctx, streamCfg)
	if err != nil {
		report(err, domain.ErrorCodeNetwork)
		return
	}

	mic, err := r.audio.Start(ctx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		report(err, domain.ErrorCodeAudioCapture)
		return
	}

	pumpDone := make(chan error, 1)
	pumping := true
	go func() {
		pumpDone <- pumpAudioChunks(mic, stream, r.cfg.ChunkSize)
	}()
	defer func() {
		_ = mic.Stop()
		_ = stream.Close()
		if pumping {
			<-pumpDone
		}
	}()

	logger.Info("recognition session started", zap.String("language", streamCfg.Language))
	listener.OnSessionStarted()

	var noSpeech <-chan time.Time
	if r.cfg.NoSpeechTimeout > 0 {
		timer := time.NewTimer(r.cfg.NoSpeechTimeout)
		defer timer.Stop()
		noSpeech = timer.C
	}

	tracker := &slotTracker{}
	events := stream.Events()
	stopRequested := active.stop
	stopping := false
	var finishDeadline <-chan time.Time

	beginStop := func() {
		if stopping {
			return
		}
		stopping = true
		noSpeech = nil
		if err := mic.Stop(); err != nil {
			logger.Warn("failed to stop audio capture cleanly", zap.Error(err))
		}
		finishDeadline = time.After(r.cfg.FinishTimeout)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("recognition session aborted")
			return

		case <-stopRequested:
			stopRequested = nil
			beginStop()

		case err := <-pumpDone:
			pumping = false
			pumpDone = nil
			if err != nil && !stopping {
				report(err, domain.ErrorCodeAudioCapture)
				return
			}
			beginStop()
			if err := stream.CloseSend(); err != nil {
				logger.Warn("failed to close audio stream", zap.Error(err))
			}

		case event, ok := <-events:
			if !ok {
				if err := stream.Wait(); err != nil && !stopping {
					report(err, domain.ErrorCodeNetwork)
				}
				logger.Info("recognition session finished")
				return
			}
			index, changed := tracker.apply(event, r.separate())
			if !changed {
				continue
			}
			if strings.TrimSpace(event.Text) != "" {
				noSpeech = nil
				if event.Kind == domain.TranscriptKindFinal {
					r.markTranscribed()
				}
			}
			listener.OnResult(index, tracker.snapshot())
			if !recCfg.Continuous && tracker.hasFinal() {
				beginStop()
			}

		case <-noSpeech:
			report(&Error{Code: domain.ErrorCodeNoSpeech, Err: errNoSpeech}, domain.ErrorCodeNoSpeech)
			return

		case <-finishDeadline:
			logger.Warn("transport did not finish in time; closing stream")
			return
		}
	}
}
