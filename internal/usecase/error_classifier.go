package usecase

import (
	"fmt"

	"micscribe/internal/domain"
)

const (
	messageUnsupported      = "speech recognition is not supported in this environment"
	messagePermissionDenied = "microphone access denied, please allow access"
	messageNoSpeech         = "no speech detected, try again"
)

func classifyError(code string) domain.ErrorState {
	switch code {
	case domain.ErrorCodePermissionDenied:
		return domain.ErrorState{Kind: domain.ErrorKindPermissionDenied, Code: code, Message: messagePermissionDenied}
	case domain.ErrorCodeNoSpeech:
		return domain.ErrorState{Kind: domain.ErrorKindNoSpeech, Code: code, Message: messageNoSpeech}
	default:
		return domain.ErrorState{Kind: domain.ErrorKindProvider, Code: code, Message: fmt.Sprintf("speech recognition error: %s", code)}
	}
}

func unsupportedError() domain.ErrorState {
	return domain.ErrorState{Kind: domain.ErrorKindUnsupported, Message: messageUnsupported}
}
