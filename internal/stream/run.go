package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/HerbHall/streamwatch/internal/source"
	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// shardQueue is the per-worker backlog of accepted readings.
const shardQueue = 64

// Run consumes src until it is exhausted or ctx is cancelled, then closes
// the sink. Readings already taken from the source are always processed,
// even after cancellation. Malformed and out-of-order readings are logged
// and skipped. Run returns nil on a clean end, the source error if the
// source fails, or the sink error under the halt policy.
func (c *Controller) Run(ctx context.Context, src source.Source) (err error) {
	defer func() {
		if cerr := c.sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sink: %w", cerr)
		}
	}()

	var limiter *rate.Limiter
	if c.cfg.SampleRateDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.cfg.SampleRateDelay), 1)
	}

	c.logger.Info("stream started",
		zap.Int("window_size", c.cfg.WindowSize),
		zap.Float64("threshold_multiplier", c.cfg.ThresholdMultiplier),
		zap.String("model", c.cfg.Model.Name),
		zap.Int("workers", c.cfg.Workers),
		zap.Duration("sample_rate_delay", c.cfg.SampleRateDelay),
	)

	if c.cfg.Workers <= 1 {
		err = c.runSequential(ctx, src, limiter)
	} else {
		err = c.runSharded(ctx, src, limiter, c.cfg.Workers)
	}

	if err != nil {
		c.logger.Error("stream stopped", zap.Error(err))
	} else {
		c.logger.Info("stream finished", zap.Int("sensors", len(c.Sensors())))
	}
	return err
}

func (c *Controller) runSequential(ctx context.Context, src source.Source, limiter *rate.Limiter) error {
	for {
		r, ok, err := c.next(ctx, src, limiter)
		if err != nil || !ok {
			return err
		}
		if err := c.handle(context.WithoutCancel(ctx), r); err != nil {
			return err
		}
	}
}

// runSharded pins each sensor to one worker so its readings stay strictly
// sequential while different sensors are fitted in parallel.
func (c *Controller) runSharded(ctx context.Context, src source.Source, limiter *rate.Limiter, workers int) error {
	g, gctx := errgroup.WithContext(ctx)

	shards := make([]chan analytics.Reading, workers)
	for i := range shards {
		shards[i] = make(chan analytics.Reading, shardQueue)
	}

	for i := range shards {
		ch := shards[i]
		g.Go(func() error {
			drainCtx := context.WithoutCancel(ctx)
			for r := range ch {
				if err := c.handle(drainCtx, r); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		for {
			r, ok, err := c.next(gctx, src, limiter)
			if err != nil || !ok {
				return err
			}
			ch := shards[xxhash.Sum64String(r.SensorID)%uint64(workers)]
			select {
			case ch <- r:
			case <-gctx.Done():
				// A worker halted; the rest drain what they already hold.
				return nil
			}
		}
	})

	return g.Wait()
}

// next returns the next valid reading. ok is false when the stream ended
// cleanly (source exhausted or ctx cancelled).
func (c *Controller) next(ctx context.Context, src source.Source, limiter *rate.Limiter) (analytics.Reading, bool, error) {
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return analytics.Reading{}, false, nil
			}
		}

		r, err := src.Next(ctx)
		switch {
		case err == nil:
			return r, true, nil
		case errors.Is(err, io.EOF):
			return analytics.Reading{}, false, nil
		case errors.Is(err, ErrMalformedReading):
			readingsTotal.WithLabelValues("malformed").Inc()
			c.logger.Warn("skipping malformed reading", zap.Error(err))
			continue
		case ctx.Err() != nil:
			return analytics.Reading{}, false, nil
		default:
			return analytics.Reading{}, false, fmt.Errorf("read source: %w", err)
		}
	}
}

// handle applies the skip/halt rules to one Process call.
func (c *Controller) handle(ctx context.Context, r analytics.Reading) error {
	_, err := c.Process(ctx, r)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMalformedReading), errors.Is(err, ErrOutOfOrder):
		c.logger.Warn("skipping rejected reading",
			zap.String("sensor", r.SensorID),
			zap.Error(err),
		)
		return nil
	case c.cfg.OnSinkError == OnSinkErrorSkip:
		c.logger.Warn("decision not recorded; continuing",
			zap.String("sensor", r.SensorID),
			zap.Error(err),
		)
		return nil
	default:
		return err
	}
}
