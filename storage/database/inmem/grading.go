package inmemdb

import (
	"context"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grading"
)

type gradeScaleRepository struct {
	db *DB
}

var _ grading.Repository = (*gradeScaleRepository)(nil) // interface compliance check

// NewGradeScaleRepository serves the scale of db, seeded with grading.DefaultScale.
func NewGradeScaleRepository(db *DB) *gradeScaleRepository {
	return &gradeScaleRepository{db: db}
}

func (repo *gradeScaleRepository) GetScale(_ context.Context, _ ...core.DBExecutor) (grading.Scale, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return append(grading.Scale{}, repo.db.t.scale...), nil
}

func (repo *gradeScaleRepository) ReplaceScale(_ context.Context, scale grading.Scale, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.t.scale = append(grading.Scale{}, scale...)
	return nil
}
