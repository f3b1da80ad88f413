package usecase

import (
	"strings"

	"micscribe/internal/domain"
)

// mergeResults splits the slots changed by one result event into their final and
// tentative concatenations. Slots before resultIndex were handled by earlier events.
func mergeResults(resultIndex int, slots []domain.ResultSlot) (final string, interim string) {
	if resultIndex < 0 {
		resultIndex = 0
	}
	if resultIndex >= len(slots) {
		return "", ""
	}

	var finalText, interimText strings.Builder
	for _, slot := range slots[resultIndex:] {
		if slot.IsFinal {
			finalText.WriteString(slot.Text)
		} else {
			interimText.WriteString(slot.Text)
		}
	}
	return finalText.String(), interimText.String()
}
