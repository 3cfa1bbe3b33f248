package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrSlotTimeout signals that no model slot became free before the
// context expired. Retryable: the caller may re-queue the document.
var ErrSlotTimeout = errors.New("timed out waiting for model slot")

// SlotGate serializes access to a scarce model budget. Backend calls
// follow acquire-call-release; the gate itself holds no other state.
type SlotGate struct {
	slots chan struct{}
}

// NewSlotGate creates a gate admitting n concurrent model calls.
func NewSlotGate(n int) *SlotGate {
	if n < 1 {
		n = 1
	}
	return &SlotGate{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or the context ends.
func (g *SlotGate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrSlotTimeout, ctx.Err())
	}
}

// Release frees a slot taken by Acquire.
func (g *SlotGate) Release() {
	select {
	case <-g.slots:
	default:
	}
}
