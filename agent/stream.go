package agent

import (
	"context"

	"github.com/hupe1980/agenthost/core"
)

// Stream runs an invocation and encodes its events as JSON-like stream units:
// a leading start unit, one {"event": ...} unit per generation event, and a
// trailing result unit once generation completes. Only the event units carry
// the field the invocation handler relays to callers; start and result are
// lifecycle units for local consumers.
//
// The returned sequence is lazy, finite and non-restartable. A mid-stream
// generation failure terminates the unit stream and is delivered on the
// error channel; units already emitted stand.
func (a *Agent) Stream(ctx context.Context, prompt string) (<-chan core.StreamUnit, <-chan error) {
	units := make(chan core.StreamUnit, a.eventBufferSize)
	errs := make(chan error, 1)

	invocationID, events, invErrs := a.Invoke(ctx, prompt)

	go func() {
		defer close(units)
		defer close(errs)

		if err := emitUnit(ctx, units, core.NewStartUnit(invocationID)); err != nil {
			return
		}

		var finalText string
		for ev := range events {
			if ev.TurnComplete != nil && *ev.TurnComplete {
				finalText = ev.Text()
			}
			if err := emitUnit(ctx, units, core.NewEventUnit(ev)); err != nil {
				return
			}
		}

		if err := <-invErrs; err != nil {
			select {
			case <-ctx.Done():
			case errs <- err:
			}
			return
		}

		_ = emitUnit(ctx, units, core.NewResultUnit(invocationID, finalText, "stop"))
	}()

	return units, errs
}

// emitUnit delivers u unless ctx is done.
func emitUnit(ctx context.Context, units chan<- core.StreamUnit, u core.StreamUnit) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case units <- u:
		return nil
	}
}
