package recognizer

import (
	"errors"
	"fmt"
	"testing"

	"micscribe/internal/domain"
)

func TestCodeFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "coded", err: fmt.Errorf("wrap: %w", &Error{Code: "custom-code", Err: errors.New("x")}), want: "custom-code"},
		{name: "permission", err: fmt.Errorf("ffmpeg: %w", domain.ErrPermissionDenied), want: domain.ErrorCodePermissionDenied},
		{name: "unauthorized", err: domain.ErrProviderUnauthorized, want: domain.ErrorCodeServiceNotAllowed},
		{name: "fallback", err: errors.New("other"), want: "network"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := codeFor(tc.err, "network"); got != tc.want {
				t.Fatalf("unexpected code: %q", got)
			}
		})
	}
}

func TestErrorMessageFallsBackToCode(t *testing.T) {
	t.Parallel()

	if got := (&Error{Code: "custom-code"}).Error(); got != "custom-code" {
		t.Fatalf("unexpected message: %q", got)
	}
}
