package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const readBufferSize = 4 * 1024

// Consume runs the read loop of a decode session: it reads chunks from r and
// feeds them to d until the session closes.
//
// Natural end of input finishes the session with a done event. A read
// failure or context cancellation fails it with an error event. Consume
// returns nil when the session completed successfully and the terminal
// error otherwise. Closing r is left to the caller.
func Consume(ctx context.Context, r io.Reader, d *Decoder) error {
	buf := make([]byte, readBufferSize)

	for d.State() != StateClosed {
		if err := ctx.Err(); err != nil {
			d.Fail(err)
			return d.Err()
		}

		n, err := r.Read(buf)
		if n > 0 {
			_, _ = d.Write(buf[:n])
		}

		if errors.Is(err, io.EOF) {
			d.Finish()
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			d.Fail(fmt.Errorf("reading stream: %w", err))
			break
		}
	}

	return d.Err()
}
