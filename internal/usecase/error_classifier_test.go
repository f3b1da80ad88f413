package usecase

import (
	"testing"

	"micscribe/internal/domain"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.ErrorState{
		domain.ErrorCodePermissionDenied: {Kind: domain.ErrorKindPermissionDenied, Code: "permission-denied", Message: "microphone access denied, please allow access"},
		domain.ErrorCodeNoSpeech:         {Kind: domain.ErrorKindNoSpeech, Code: "no-speech-detected", Message: "no speech detected, try again"},
		domain.ErrorCodeNetwork:          {Kind: domain.ErrorKindProvider, Code: "network", Message: "speech recognition error: network"},
		"weird code":                     {Kind: domain.ErrorKindProvider, Code: "weird code", Message: "speech recognition error: weird code"},
	}

	for code, want := range cases {
		code := code
		want := want
		t.Run(code, func(t *testing.T) {
			t.Parallel()
			if got := classifyError(code); got != want {
				t.Fatalf("unexpected classification: %+v", got)
			}
		})
	}
}
