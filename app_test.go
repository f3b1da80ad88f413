package main

import (
	"context"
	"errors"
	"testing"

	"micscribe/internal/config"
	"micscribe/internal/domain"
	"micscribe/internal/ports"
	"micscribe/internal/usecase"
)

type missingCapability struct{}

func (missingCapability) Detect() (ports.RecognitionProvider, bool) { return nil, false }

type recordingClipboard struct{ texts []string }

func (c *recordingClipboard) SetText(_ context.Context, text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func TestGetStateWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := NewApp()
	state := app.GetState()
	if state.State != domain.SessionStateIdle || state.Listening || state.Error != nil {
		t.Fatalf("unexpected state: %+v", state)
	}

	app.bootErr = errors.New("boot")
	state = app.GetState()
	if state.State != domain.SessionStateErroring || state.Error == nil || state.Error.Message != "startup failed: boot" {
		t.Fatalf("unexpected boot state: %+v", state)
	}
}

func TestActionsBeforeStartupAreSafe(t *testing.T) {
	t.Parallel()

	app := NewApp()
	if got := app.StartListening(); got.Listening {
		t.Fatalf("expected idle state, got %+v", got)
	}
	if got := app.StopListening(); got.Listening {
		t.Fatalf("expected idle state, got %+v", got)
	}
	app.ClearTranscript()
	app.CopyToClipboard()
	app.SessionChanged(domain.Snapshot{})
	app.shutdown(context.Background())
}

func TestUnsupportedSessionActionsAreNoOps(t *testing.T) {
	t.Parallel()

	clipboard := &recordingClipboard{}
	app := NewApp()
	app.session = usecase.NewTranscriptionSession(missingCapability{}, clipboard, app, nil, usecase.Config{})

	state := app.StartListening()
	if state.Supported || state.Listening {
		t.Fatalf("expected unsupported idle state, got %+v", state)
	}
	if state.Error == nil || state.Error.Kind != domain.ErrorKindUnsupported {
		t.Fatalf("expected unsupported error, got %+v", state.Error)
	}

	app.CopyToClipboard()
	if len(clipboard.texts) != 0 {
		t.Fatalf("expected no clipboard writes, got %v", clipboard.texts)
	}
	app.shutdown(context.Background())
}

func TestGetRuntimeInfo(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Path = "/tmp/micscribe.toml"
	app := &App{cfg: cfg, backend: "openai"}

	info := app.GetRuntimeInfo()
	if info["backend"] != "openai" || info["model"] != "gpt-4o-transcribe" {
		t.Fatalf("unexpected backend info: %+v", info)
	}
	if info["language"] != "en-US" || info["audioInput"] != "default" || info["configFile"] != "/tmp/micscribe.toml" {
		t.Fatalf("unexpected runtime info: %+v", info)
	}

	app.backend = "deepgram"
	if got := app.GetRuntimeInfo()["model"]; got != "nova-2" {
		t.Fatalf("unexpected deepgram model: %q", got)
	}

	app.bootErr = errors.New("boot")
	if got := app.GetRuntimeInfo(); got["error"] != "boot" || len(got) != 1 {
		t.Fatalf("unexpected boot info: %+v", got)
	}
}

func TestRequestContextFallsBackToBackground(t *testing.T) {
	t.Parallel()

	app := NewApp()
	if app.requestContext() == nil {
		t.Fatalf("expected background context")
	}
}
