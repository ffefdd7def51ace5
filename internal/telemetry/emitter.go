package telemetry

import (
	"context"
	"errors"
)

// Fanout emits each event to every non-nil emitter and joins their errors.
type Fanout []EventEmitter

// NewFanout drops nil emitters so callers can pass optional sinks unconditionally.
func NewFanout(emitters ...EventEmitter) Fanout {
	out := make(Fanout, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (f Fanout) Emit(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
