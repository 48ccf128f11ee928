package grading

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
)

type (
	Repository interface {
		// GetScale returns the bands in scale order.
		GetScale(ctx context.Context, exec ...core.DBExecutor) (Scale, error)
		ReplaceScale(ctx context.Context, scale Scale, exec ...core.DBExecutor) error
	}

	// Regrader recomputes the stored grades of recorded results against scale.
	Regrader interface {
		Regrade(ctx context.Context, scale Scale, exec core.DBExecutor) (int, error)
	}

	Service interface {
		Scale(ctx context.Context) (Scale, error)
		// Replace swaps the grade scale and regrades every recorded result.
		Replace(ctx context.Context, ns NewScale) (Scale, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		regrader Regrader
		cache    core.Cache
		logger   core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(tx core.Transactor, repo Repository, regrader Regrader, cache core.Cache, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(regrader, "regrader"),
		vala.IsNotNil(cache, "cache"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{tx: tx, repo: repo, regrader: regrader, cache: cache, logger: logger}
}

func (svc *service) Scale(ctx context.Context) (Scale, error) {
	scale, err := svc.repo.GetScale(ctx)
	return scale, errors.Wrap(err, "loading grade scale")
}

func (svc *service) Replace(ctx context.Context, ns NewScale) (Scale, error) {
	scale := ns.Scale()
	var regraded int
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		err := svc.repo.ReplaceScale(ctx, scale, exec)
		if err != nil {
			return err
		}
		regraded, err = svc.regrader.Regrade(ctx, scale, exec)
		return errors.Wrap(err, "regrading results")
	})
	if err != nil {
		return nil, errors.Wrap(err, "replacing grade scale")
	}

	// every cached class report was graded with the old scale
	if err = svc.cache.DeletePrefix(ctx, core.ReportCachePrefix); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating cached reports: %v", err), err)
	}
	svc.logger.Info(fmt.Sprintf("grade scale replaced: %d bands, %d results regraded", len(scale), regraded))
	return scale, nil
}

type (
	NewBand struct {
		Grade      string  `json:"grade" validate:"required,notblank,max=5"`
		MinPercent float64 `json:"min_percent" validate:"gte=0,lte=100"`
		MaxPercent float64 `json:"max_percent" validate:"gte=0,lte=100,gtefield=MinPercent"`
	}

	// NewScale replaces the whole grade scale. Bands are kept in the given order.
	NewScale struct {
		Bands []NewBand `json:"bands" validate:"required,min=1,dive"`
	}
)

func (ns *NewScale) Validate(validate *validator.Validate) error {
	for i := range ns.Bands {
		ns.Bands[i].Grade = core.CleanString(ns.Bands[i].Grade)
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}

	// bands may leave gaps but must not overlap
	sorted := ns.Scale()
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinPercent < sorted[j].MinPercent })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinPercent <= sorted[i-1].MaxPercent {
			return core.NewValidationError(nil, core.FieldError{
				Field: "bands",
				Error: fmt.Sprintf("grade %s overlaps grade %s", sorted[i].Grade, sorted[i-1].Grade),
			})
		}
	}
	return nil
}

func (ns NewScale) Scale() Scale {
	scale := make(Scale, 0, len(ns.Bands))
	for _, b := range ns.Bands {
		scale = append(scale, Band(b))
	}
	return scale
}
