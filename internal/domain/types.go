package domain

// SessionState models the listening lifecycle shown to the view.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateListening SessionState = "listening"
	SessionStateErroring  SessionState = "erroring"
)

// ErrorKind classifies errors surfaced to the user.
type ErrorKind string

const (
	ErrorKindUnsupported      ErrorKind = "unsupported"
	ErrorKindPermissionDenied ErrorKind = "permission_denied"
	ErrorKindNoSpeech         ErrorKind = "no_speech"
	ErrorKindProvider         ErrorKind = "provider"
)

// Provider error codes reported through RecognitionListener.OnError.
const (
	ErrorCodePermissionDenied  = "permission-denied"
	ErrorCodeNoSpeech          = "no-speech-detected"
	ErrorCodeAudioCapture      = "audio-capture"
	ErrorCodeNetwork           = "network"
	ErrorCodeServiceNotAllowed = "service-not-allowed"
)

// ErrorState is a classified, user-facing error.
type ErrorState struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`
}

// ResultSlot is one utterance segment of a recognition result.
type ResultSlot struct {
	IsFinal bool   `json:"isFinal"`
	Text    string `json:"text"`
}

// TranscriptKind identifies whether a stream event is interim or final text.
type TranscriptKind string

const (
	TranscriptKindInterim TranscriptKind = "interim"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a streaming transport.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// Snapshot is the read-only session state handed to the view layer.
type Snapshot struct {
	State       SessionState `json:"state"`
	Listening   bool         `json:"listening"`
	FinalText   string       `json:"finalText"`
	InterimText string       `json:"interimText"`
	Error       *ErrorState  `json:"error,omitempty"`
	Supported   bool         `json:"supported"`
}
