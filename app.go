package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"micscribe/internal/bootstrap"
	"micscribe/internal/config"
	"micscribe/internal/domain"
	"micscribe/internal/usecase"
)

const eventState = "micscribe:state"

// App is the Wails application root.
type App struct {
	ctx context.Context

	session *usecase.TranscriptionSession
	cfg     config.Config
	backend string
	logger  *zap.Logger
	bootErr error
}

func NewApp() *App {
	return &App{logger: zap.NewNop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.SessionChanged(a.GetState())
		return
	}

	a.cfg = services.Config
	a.session = services.Session
	a.backend = services.Backend
	a.logger = services.Logger
	a.SessionChanged(a.session.Snapshot())
}

// shutdown tears the session down; provider callbacks arriving afterwards are ignored.
func (a *App) shutdown(_ context.Context) {
	if a.session != nil {
		a.session.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// StartListening begins a recognition session.
func (a *App) StartListening() domain.Snapshot {
	if a.session == nil {
		return a.GetState()
	}
	a.session.StartListening()
	return a.session.Snapshot()
}

// StopListening asks the recognizer to finish and flush pending results.
func (a *App) StopListening() domain.Snapshot {
	if a.session == nil {
		return a.GetState()
	}
	a.session.StopListening()
	return a.session.Snapshot()
}

// ClearTranscript empties the transcript.
func (a *App) ClearTranscript() domain.Snapshot {
	if a.session == nil {
		return a.GetState()
	}
	a.session.ClearTranscript()
	return a.session.Snapshot()
}

// CopyToClipboard copies the final transcript to the system clipboard.
func (a *App) CopyToClipboard() {
	if a.session == nil {
		return
	}
	a.session.CopyToClipboard(a.requestContext())
}

// GetState returns the current session snapshot.
func (a *App) GetState() domain.Snapshot {
	if a.session != nil {
		return a.session.Snapshot()
	}
	snapshot := domain.Snapshot{State: domain.SessionStateIdle}
	if a.bootErr != nil {
		snapshot.State = domain.SessionStateErroring
		snapshot.Error = &domain.ErrorState{
			Kind:    domain.ErrorKindUnsupported,
			Message: fmt.Sprintf("startup failed: %v", a.bootErr),
		}
	}
	return snapshot
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"backend":          a.backend,
		"language":         a.cfg.Recognition.Language,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"configFile":       a.cfg.Path,
	}
	switch a.backend {
	case "deepgram":
		info["model"] = a.cfg.Deepgram.Model
	case "openai":
		info["model"] = a.cfg.OpenAI.Model
	}
	return info
}

// SessionChanged pushes every state change to the frontend.
func (a *App) SessionChanged(snapshot domain.Snapshot) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, snapshot)
}

func (a *App) requestContext() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
