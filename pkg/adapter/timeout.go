package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaybot/relay/pkg/relerr"
)

// WithTimeout bounds an adapter call by requestTimeout, translating a
// context deadline into AdapterTimeout so callers can errors.Is against
// the framework-level sentinel rather than context.DeadlineExceeded.
func WithTimeout(ctx context.Context, timeout time.Duration, call func(ctx context.Context) error) error {
	if timeout <= 0 {
		return call(ctx)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := call(cctx)
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", relerr.ErrAdapterTimeout, err)
	}
	return err
}
