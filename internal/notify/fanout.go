package notify

import (
	"context"
	"errors"
	"fmt"
)

// Fanout emits to every sink. One failing sink does not stop the others;
// all failures are joined into the returned error.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, n Notification) error {
	var errs []error
	for i, s := range f {
		if err := s.Emit(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("sink %d (%T): %w", i, s, err))
		}
	}
	return errors.Join(errs...)
}
