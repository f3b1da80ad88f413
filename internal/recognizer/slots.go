package recognizer

import (
	"strings"

	"github.com/samber/lo"

	"micscribe/internal/domain"
)

// slotTracker turns a flat stream of interim/final transcript events into an ordered
// result sequence. The trailing tentative slot is revised in place; a final event freezes it.
type slotTracker struct {
	slots []domain.ResultSlot
}

// apply folds one event into the sequence and returns the index of the first changed slot.
// separate prefixes the written slot with a space so it reads on from text already delivered.
func (t *slotTracker) apply(event domain.TranscriptEvent, separate bool) (int, bool) {
	text := strings.TrimSpace(event.Text)
	last := len(t.slots) - 1
	revising := last >= 0 && !t.slots[last].IsFinal

	if text == "" {
		// An empty final retracts the pending tentative slot.
		if revising && event.Kind == domain.TranscriptKindFinal {
			t.slots = t.slots[:last]
			return len(t.slots), true
		}
		return 0, false
	}

	index := len(t.slots)
	if revising {
		index = last
	}
	if separate {
		text = " " + text
	}

	slot := domain.ResultSlot{IsFinal: event.Kind == domain.TranscriptKindFinal, Text: text}
	if revising {
		t.slots[last] = slot
	} else {
		t.slots = append(t.slots, slot)
	}
	return index, true
}

func (t *slotTracker) snapshot() []domain.ResultSlot {
	return append([]domain.ResultSlot(nil), t.slots...)
}

func (t *slotTracker) hasFinal() bool {
	return lo.ContainsBy(t.slots, func(slot domain.ResultSlot) bool { return slot.IsFinal })
}
