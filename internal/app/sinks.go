package app

import (
	"context"
	"errors"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// MultiSink fans a lifecycle event out to several sinks.
type MultiSink []ports.EventSink

// Record delivers event to every sink and joins their errors.
func (m MultiSink) Record(ctx context.Context, event domain.LifecycleEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
