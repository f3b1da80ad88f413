package ports

import (
	"context"
	"io"

	"micscribe/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RecognitionConfig is applied to a RecognitionProvider before its first start.
type RecognitionConfig struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// RecognitionListener receives provider callbacks.
type RecognitionListener interface {
	OnSessionStarted()
	OnResult(resultIndex int, slots []domain.ResultSlot)
	OnError(code string, message string)
	OnSessionEnded()
}

// RecognitionProvider is the speech recognition capability driven by a transcription session.
// Start fails synchronously when capture cannot begin. Abort is safe while idle.
type RecognitionProvider interface {
	Configure(cfg RecognitionConfig)
	SetListener(listener RecognitionListener)
	Start() error
	Stop()
	Abort()
}

// TranscriptResetter is implemented by providers that format results relative to text
// already delivered. ResetTranscript forgets that text.
type TranscriptResetter interface {
	ResetTranscript()
}

// CapabilityDetector probes the host for a recognition capability.
type CapabilityDetector interface {
	Detect() (RecognitionProvider, bool)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// StateSink is notified after every session state change.
type StateSink interface {
	SessionChanged(snapshot domain.Snapshot)
}
