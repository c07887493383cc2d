package bus

import (
	"context"
	"errors"
	"time"
)

// Bridge copies every frame received on from to to until ctx is done or
// either side closes.  Send errors on to are returned.
func Bridge(ctx context.Context, from, to Endpoint, poll time.Duration) error {
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		f, err := from.Recv(poll)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			return err
		}
		if err := to.Send(f); err != nil {
			return err
		}
	}
}
