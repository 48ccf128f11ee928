package boiledrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grading"
)

type bandRow struct {
	Position   int     `db:"position"`
	Grade      string  `db:"grade"`
	MinPercent float64 `db:"min_percent"`
	MaxPercent float64 `db:"max_percent"`
}

type gradeScaleRepository struct {
	repository
}

var _ grading.Repository = (*gradeScaleRepository)(nil) // interface compliance check

func NewGradeScaleRepository(exec core.DBExecutor) *gradeScaleRepository {
	return &gradeScaleRepository{repository{exec: exec}}
}

func (repo gradeScaleRepository) GetScale(ctx context.Context, exec ...core.DBExecutor) (grading.Scale, error) {
	var scale grading.Scale
	err := repo.bind(ctx, repo.getExec(exec), &scale,
		"SELECT grade, min_percent, max_percent FROM grade_scale ORDER BY position")
	if err != nil {
		return nil, errors.Wrap(err, "querying grade scale")
	}
	return scale, nil
}

// ReplaceScale swaps the stored bands for scale. Callers run it in a transaction.
func (repo gradeScaleRepository) ReplaceScale(ctx context.Context, scale grading.Scale, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	if _, err := repo.execute(ctx, ex, "DELETE FROM grade_scale"); err != nil {
		return errors.Wrap(err, "clearing grade scale")
	}
	if len(scale) == 0 {
		return nil
	}

	rows := make([]bandRow, 0, len(scale))
	for i, b := range scale {
		rows = append(rows, bandRow{Position: i + 1, Grade: b.Grade, MinPercent: b.MinPercent, MaxPercent: b.MaxPercent})
	}
	_, err := repo.executeNamed(ctx, ex,
		`INSERT INTO grade_scale (position, grade, min_percent, max_percent)
		VALUES (:position, :grade, :min_percent, :max_percent)`, rows)
	return errors.Wrap(err, "inserting grade scale")
}
