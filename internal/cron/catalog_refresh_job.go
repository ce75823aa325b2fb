package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/courtside-storefront/pkg/logger"
)

type catalogRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

type CatalogRefreshJobParams struct {
	Logger   *logger.Logger
	Resolver catalogRefresher
}

// NewCatalogRefreshJob rebuilds the product index and republishes the shared
// snapshot so API instances pick it up without calling the storefront.
func NewCatalogRefreshJob(params CatalogRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("catalog resolver required")
	}
	return &catalogRefreshJob{logg: params.Logger, resolver: params.Resolver}, nil
}

type catalogRefreshJob struct {
	logg     *logger.Logger
	resolver catalogRefresher
}

func (j *catalogRefreshJob) Name() string { return "catalog_refresh" }

func (j *catalogRefreshJob) Run(ctx context.Context) error {
	products, err := j.resolver.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("catalog refresh: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "products", products), "catalog refresh complete")
	return nil
}
