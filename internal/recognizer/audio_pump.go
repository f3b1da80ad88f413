package recognizer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"micscribe/internal/domain"
	"micscribe/internal/ports"
)

// pumpAudioChunks forwards microphone audio until the capture ends. A clean end of input
// returns nil.
func pumpAudioChunks(audio ports.AudioSession, stream ports.StreamingSession, chunkSize int) error {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				return &Error{Code: domain.ErrorCodeNetwork, Err: fmt.Errorf("failed to stream audio: %w", sendErr)}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return &Error{Code: domain.ErrorCodeAudioCapture, Err: fmt.Errorf("audio capture error: %w", err)}
		}
	}
}
