package usecase

import (
	"testing"

	"micscribe/internal/domain"
)

func TestMergeResultsSplitsFinalAndTentative(t *testing.T) {
	t.Parallel()

	slots := []domain.ResultSlot{
		{IsFinal: true, Text: "already handled"},
		{IsFinal: true, Text: " one"},
		{IsFinal: false, Text: " two"},
		{IsFinal: true, Text: " three"},
		{IsFinal: false, Text: " four"},
	}

	final, interim := mergeResults(1, slots)
	if final != " one three" {
		t.Fatalf("unexpected final: %q", final)
	}
	if interim != " two four" {
		t.Fatalf("unexpected interim: %q", interim)
	}
}

func TestMergeResultsIndexOutOfRange(t *testing.T) {
	t.Parallel()

	slots := []domain.ResultSlot{{IsFinal: true, Text: "a"}}

	for _, index := range []int{1, 5} {
		final, interim := mergeResults(index, slots)
		if final != "" || interim != "" {
			t.Fatalf("index %d: expected empty contributions, got %q / %q", index, final, interim)
		}
	}

	final, _ := mergeResults(-3, slots)
	if final != "a" {
		t.Fatalf("expected negative index to clamp to zero, got %q", final)
	}
}

func TestMergeResultsEmpty(t *testing.T) {
	t.Parallel()

	final, interim := mergeResults(0, nil)
	if final != "" || interim != "" {
		t.Fatalf("expected empty, got %q / %q", final, interim)
	}
}
