package analysisd

import (
	"context"
	"errors"

	"timeseries-analysis/internal/model"
)

// batchSink is implemented by sinks that can write many results in one round
// trip (store/redis.Publisher).
type batchSink interface {
	PublishBatch(ctx context.Context, results []model.IndicatorResult) error
}

// fanout delivers every result to all sinks. A failing sink does not stop
// delivery to the others; their errors are joined.
type fanout []model.ResultSink

func (f fanout) Publish(ctx context.Context, res model.IndicatorResult) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) PublishBatch(ctx context.Context, results []model.IndicatorResult) error {
	if len(results) == 0 {
		return nil
	}
	var errs []error
	for _, s := range f {
		if b, ok := s.(batchSink); ok {
			if err := b.PublishBatch(ctx, results); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		for _, res := range results {
			if err := s.Publish(ctx, res); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}
