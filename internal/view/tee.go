package view

import (
	"context"

	"streamregistry/internal/domain"
)

// MultiApplier fans one change event out to several appliers in order. The
// first failure stops the chain so the materializer retries the record.
type MultiApplier []Applier

func (m MultiApplier) Apply(ctx context.Context, ev domain.ChangeEvent) error {
	for _, a := range m {
		if err := a.Apply(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
