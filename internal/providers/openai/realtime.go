package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"micscribe/internal/domain"
	"micscribe/internal/ports"
)

// SampleRate is the PCM16 rate the realtime transcription endpoint expects.
const SampleRate = 24000

// Config controls the OpenAI realtime transcription session.
type Config struct {
	APIKey         string
	APIBaseURL     string
	Model          string
	NoiseReduction string
	Timeout        time.Duration
}

// Provider implements ports.TranscriptionProvider on the OpenAI realtime transcription API.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *zap.Logger
}

func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.openai.com"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-transcribe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		logger:     logger.Named("openai"),
	}
}

// Configured reports whether credentials are present.
func (p *Provider) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if !p.Configured() {
		return nil, errors.New("OPENAI_API_KEY is not configured")
	}

	sessionID, secret, err := p.createSession(ctx, cfg.Language)
	if err != nil {
		return nil, err
	}

	wsURL := fmt.Sprintf("%s/v1/realtime?session_id=%s", toWebSocketBase(p.cfg.APIBaseURL), url.QueryEscape(sessionID))
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+secret)
	headers.Set("openai-beta", "realtime=v1")

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && isUnauthorized(resp.StatusCode) {
			return nil, fmt.Errorf("openai realtime handshake returned %d: %w", resp.StatusCode, domain.ErrProviderUnauthorized)
		}
		return nil, fmt.Errorf("failed to connect to OpenAI realtime websocket: %w", err)
	}
	p.logger.Debug("connected", zap.String("session_id", sessionID), zap.String("model", p.cfg.Model))

	session := &streamingSession{
		conn:    conn,
		decoder: newEventDecoder(),
		events:  make(chan domain.TranscriptEvent, 64),
		audio:   make(chan []byte, 32),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		logger:  p.logger.With(zap.String("session_id", sessionID)),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	return session, nil
}

type sessionRequest struct {
	InputAudioFormat         string                `json:"input_audio_format"`
	InputAudioTranscription  transcriptionSettings `json:"input_audio_transcription"`
	InputAudioNoiseReduction *noiseReduction       `json:"input_audio_noise_reduction,omitempty"`
}

type transcriptionSettings struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type noiseReduction struct {
	Type string `json:"type"`
}

type sessionResponse struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// createSession registers a transcription session and returns its id and ephemeral secret.
func (p *Provider) createSession(ctx context.Context, language string) (string, string, error) {
	body := sessionRequest{
		InputAudioFormat: "pcm16",
		InputAudioTranscription: transcriptionSettings{
			Model:    p.cfg.Model,
			Language: baseLanguage(language),
		},
	}
	if p.cfg.NoiseReduction != "" {
		body.InputAudioNoiseReduction = &noiseReduction{Type: p.cfg.NoiseReduction}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+"/v1/realtime/transcription_sessions", bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("openai-beta", "realtime=v1")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to create transcription session: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read session response: %w", err)
	}
	if isUnauthorized(resp.StatusCode) {
		return "", "", fmt.Errorf("openai session request returned %d: %w", resp.StatusCode, domain.ErrProviderUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result sessionResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", "", fmt.Errorf("failed to parse session response: %w", err)
	}
	sessionID := result.SessionID
	if sessionID == "" {
		sessionID = result.ID
	}
	if sessionID == "" || result.ClientSecret.Value == "" {
		return "", "", errors.New("session response is missing session id or client secret")
	}
	return sessionID, result.ClientSecret.Value, nil
}

type streamingSession struct {
	conn    *websocket.Conn
	decoder *eventDecoder
	logger  *zap.Logger

	events  chan domain.TranscriptEvent
	audio   chan []byte
	closing chan struct{}
	done    chan struct{}

	wg       sync.WaitGroup
	draining atomic.Bool

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.closing:
		return errors.New("session closed")
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.conn.Close()
		_ = s.CloseSend()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	select {
	case <-s.closing:
		return
	default:
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		message, err := json.Marshal(appendMessage{
			Type:  "input_audio_buffer.append",
			Audio: base64.StdEncoding.EncodeToString(chunk),
		})
		if err != nil {
			s.setErr(fmt.Errorf("failed to marshal audio chunk: %w", err))
			return
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}

	// The server answers the commit with a committed event or a commit_empty error;
	// the read loop finishes once every committed item has been transcribed.
	s.draining.Store(true)
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input_audio_buffer.commit"}`)); err != nil {
		s.setErr(fmt.Errorf("failed to commit audio buffer: %w", err))
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		draining := s.draining.Load()
		events, finished, err := s.decoder.handle(payload, draining)
		for _, event := range events {
			s.emit(event)
		}
		if err != nil {
			s.setErr(err)
			return
		}
		if finished {
			s.logger.Debug("transcription drained")
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *streamingSession) emit(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	case <-s.closing:
	}
}

type appendMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type serverEvent struct {
	Type       string `json:"type"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// eventDecoder folds realtime server events into interim and final transcript events.
// Deltas accumulate per item; a completed item replaces its interim text with the final transcript.
type eventDecoder struct {
	partial   map[string]string
	pending   map[string]struct{}
	committed bool
}

func newEventDecoder() *eventDecoder {
	return &eventDecoder{
		partial: make(map[string]string),
		pending: make(map[string]struct{}),
	}
}

// handle decodes one payload. finished is true once draining and every committed item is done.
func (d *eventDecoder) handle(payload []byte, draining bool) ([]domain.TranscriptEvent, bool, error) {
	var event serverEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, false, nil
	}

	var out []domain.TranscriptEvent
	switch event.Type {
	case "input_audio_buffer.committed":
		if event.ItemID != "" {
			d.pending[event.ItemID] = struct{}{}
		}
		if draining {
			d.committed = true
		}

	case "conversation.item.input_audio_transcription.delta":
		if event.Delta == "" {
			break
		}
		d.partial[event.ItemID] += event.Delta
		if text := strings.TrimSpace(d.partial[event.ItemID]); text != "" {
			out = append(out, domain.TranscriptEvent{Kind: domain.TranscriptKindInterim, Text: text})
		}

	case "conversation.item.input_audio_transcription.completed":
		delete(d.partial, event.ItemID)
		delete(d.pending, event.ItemID)
		out = append(out, domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: strings.TrimSpace(event.Transcript)})

	case "conversation.item.input_audio_transcription.failed":
		delete(d.partial, event.ItemID)
		delete(d.pending, event.ItemID)
		out = append(out, domain.TranscriptEvent{Kind: domain.TranscriptKindFinal})

	case "error":
		if event.Error != nil && event.Error.Code == "input_audio_buffer_commit_empty" && draining {
			d.committed = true
			break
		}
		message := "openai returned an unknown error"
		if event.Error != nil && strings.TrimSpace(event.Error.Message) != "" {
			message = strings.TrimSpace(event.Error.Message)
		}
		return append(out, domain.TranscriptEvent{Kind: domain.TranscriptKindFinal}), false, errors.New(message)
	}

	return out, draining && d.committed && len(d.pending) == 0, nil
}

// baseLanguage reduces a BCP-47 tag such as en-US to the ISO-639-1 code the API accepts.
func baseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

func toWebSocketBase(httpBase string) string {
	b := strings.TrimRight(httpBase, "/")
	switch {
	case strings.HasPrefix(b, "https://"):
		return "wss://" + strings.TrimPrefix(b, "https://")
	case strings.HasPrefix(b, "http://"):
		return "ws://" + strings.TrimPrefix(b, "http://")
	default:
		return b
	}
}

func isUnauthorized(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
