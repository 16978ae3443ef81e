// Package feed produces ordered book events for the replay loop: CSV
// files, deterministic synthetic data, or live exchange polling.
package feed

import (
	"context"

	"github.com/vadiminshakov/microsim/internal/domain"
)

// Source is a plain sequence producer of book events in non-decreasing
// timestamp order. Next returns io.EOF when the sequence is exhausted
// and an error wrapping domain.ErrMalformedRecord for a row that cannot
// be parsed; the caller skips such rows and keeps reading.
type Source interface {
	Next(ctx context.Context) (domain.BookEvent, error)
}
