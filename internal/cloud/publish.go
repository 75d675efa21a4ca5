package cloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/http"
	"github.com/wireapp/wire-desktop/internal/logging"
)

// Result is the outcome of publishing to one destination.
type Result struct {
	Destination string
	Location    string
	Duration    time.Duration
	Err         error
}

// Publisher uploads archives to several destinations at once.
type Publisher struct {
	retry  http.Config
	logger *logging.Logger
	limit  int
}

// NewPublisher creates a Publisher with the default retry settings.
func NewPublisher(logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{
		retry:  http.DefaultConfig(),
		logger: logger.Component("publish"),
		limit:  constants.MaxConcurrentPublishes,
	}
}

// SetRetryConfig overrides the per-destination retry settings.
func (p *Publisher) SetRetryConfig(cfg http.Config) {
	p.retry = cfg
}

// Publish uploads localPath as name to every destination. A failing
// destination does not stop the others; results keep the order of dests and
// the returned error joins all failures.
func (p *Publisher) Publish(ctx context.Context, dests []Destination, localPath, name string, progress func(dest string, fraction float64)) ([]Result, error) {
	results := make([]Result, len(dests))

	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, dest := range dests {
		i, dest := i, dest
		g.Go(func() error {
			results[i] = p.publishOne(ctx, dest, localPath, name, progress)
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Destination, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (p *Publisher) publishOne(ctx context.Context, dest Destination, localPath, name string, progress func(string, float64)) Result {
	destName := dest.Name()
	res := Result{Destination: destName}
	start := time.Now()

	var cb ProgressCallback
	if progress != nil {
		cb = func(f float64) { progress(destName, f) }
	}

	retry := p.retry
	retry.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		p.logger.Warn().
			Str("destination", res.Destination).
			Int("attempt", attempt).
			Str("error_type", http.ErrorTypeName(errType)).
			Err(err).
			Msg("Retrying archive upload")
	}

	res.Err = http.ExecuteWithRetry(ctx, retry, func() error {
		loc, err := dest.Upload(ctx, localPath, name, cb)
		if err != nil {
			return err
		}
		res.Location = loc
		return nil
	})
	res.Duration = time.Since(start)

	if res.Err != nil {
		p.logger.Error().Str("destination", res.Destination).Err(res.Err).Msg("Archive upload failed")
	} else {
		p.logger.Info().
			Str("destination", res.Destination).
			Str("location", res.Location).
			Dur("duration", res.Duration).
			Msg("Archive published")
	}
	return res
}
