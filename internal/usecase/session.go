package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"micscribe/internal/domain"
	"micscribe/internal/ports"
)

const defaultLanguage = "en-US"

// Config controls how the recognition provider is configured at mount.
type Config struct {
	Language string
}

// TranscriptionSession owns one recognition provider and the transcript built from its results.
// Provider callbacks and view actions are serialized on a single mutex. The state sink is
// invoked with the lock held and must not call back into the session.
type TranscriptionSession struct {
	provider  ports.RecognitionProvider
	clipboard ports.Clipboard
	sink      ports.StateSink
	logger    *zap.Logger

	mu        sync.Mutex
	supported bool
	closed    bool
	listening bool
	final     string
	interim   string
	err       *domain.ErrorState
}

// NewTranscriptionSession probes for a recognition capability and wires its callbacks.
// When none is available the session is permanently unsupported and every action is a no-op.
func NewTranscriptionSession(
	detector ports.CapabilityDetector,
	clipboard ports.Clipboard,
	sink ports.StateSink,
	logger *zap.Logger,
	cfg Config,
) *TranscriptionSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}

	s := &TranscriptionSession{
		clipboard: clipboard,
		sink:      sink,
		logger:    logger.Named("session"),
	}

	provider, ok := detector.Detect()
	if !ok || provider == nil {
		unsupported := unsupportedError()
		s.err = &unsupported
		s.logger.Warn("speech recognition capability not available")
		return s
	}

	provider.Configure(ports.RecognitionConfig{
		Continuous:     true,
		InterimResults: true,
		Language:       cfg.Language,
	})
	provider.SetListener(s)
	s.provider = provider
	s.supported = true
	return s
}

// Snapshot returns the current observable state.
func (s *TranscriptionSession) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// StartListening asks the provider to begin a capture session.
func (s *TranscriptionSession) StartListening() {
	s.mu.Lock()
	if !s.supported || s.closed || s.listening {
		s.mu.Unlock()
		return
	}
	s.err = nil
	s.notifyLocked()
	provider := s.provider
	s.mu.Unlock()

	if err := provider.Start(); err != nil {
		s.logger.Warn("recognition start failed", zap.Error(err))
	}
}

// StopListening asks the provider to finish the capture session. Listening stays true
// until the provider confirms the session ended.
func (s *TranscriptionSession) StopListening() {
	s.mu.Lock()
	if !s.supported || s.closed || !s.listening {
		s.mu.Unlock()
		return
	}
	provider := s.provider
	s.mu.Unlock()

	provider.Stop()
}

// ClearTranscript empties final and interim text.
func (s *TranscriptionSession) ClearTranscript() {
	s.mu.Lock()
	if !s.supported || s.closed {
		s.mu.Unlock()
		return
	}
	provider := s.provider
	s.mu.Unlock()

	if resetter, ok := provider.(ports.TranscriptResetter); ok {
		resetter.ResetTranscript()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.final = ""
	s.interim = ""
	s.notifyLocked()
}

// CopyToClipboard exports the final transcript. Clipboard failures are logged only.
func (s *TranscriptionSession) CopyToClipboard(ctx context.Context) {
	s.mu.Lock()
	text := s.final
	closed := s.closed
	s.mu.Unlock()

	if closed || text == "" || s.clipboard == nil {
		return
	}
	if err := s.clipboard.SetText(ctx, text); err != nil {
		s.logger.Warn("clipboard write failed", zap.Error(err))
	}
}

// Close aborts the provider and ignores every later callback and action.
func (s *TranscriptionSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	provider := s.provider
	s.mu.Unlock()

	if provider != nil {
		provider.Abort()
	}
}

// OnSessionStarted confirms the provider is capturing.
func (s *TranscriptionSession) OnSessionStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.listening = true
	s.err = nil
	s.notifyLocked()
}

// OnResult merges the slots changed since the previous event.
func (s *TranscriptionSession) OnResult(resultIndex int, slots []domain.ResultSlot) {
	final, interim := mergeResults(resultIndex, slots)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if final != "" {
		s.final += final
	}
	s.interim = interim
	s.notifyLocked()
}

// OnError surfaces a classified provider error and drops the listening flag.
func (s *TranscriptionSession) OnError(code string, message string) {
	classified := classifyError(code)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.logger.Warn("recognition error", zap.String("code", code), zap.String("detail", message))
	s.err = &classified
	s.listening = false
	s.notifyLocked()
}

// OnSessionEnded drops the listening flag and discards unconfirmed interim text.
func (s *TranscriptionSession) OnSessionEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.listening = false
	s.interim = ""
	s.notifyLocked()
}

func (s *TranscriptionSession) snapshotLocked() domain.Snapshot {
	snapshot := domain.Snapshot{
		Listening:   s.listening,
		FinalText:   s.final,
		InterimText: s.interim,
		Supported:   s.supported,
	}
	if s.err != nil {
		copied := *s.err
		snapshot.Error = &copied
	}
	switch {
	case s.listening:
		snapshot.State = domain.SessionStateListening
	case s.err != nil:
		snapshot.State = domain.SessionStateErroring
	default:
		snapshot.State = domain.SessionStateIdle
	}
	return snapshot
}

func (s *TranscriptionSession) notifyLocked() {
	if s.sink == nil {
		return
	}
	s.sink.SessionChanged(s.snapshotLocked())
}
