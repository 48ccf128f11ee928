package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/publish"
)

type publicationRepository struct {
	repository
}

var _ publish.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(exec core.DBExecutor) *publicationRepository {
	return &publicationRepository{repository{exec: exec}}
}

func (repo publicationRepository) CreatePublication(ctx context.Context, pub publish.Publication, exec ...core.DBExecutor) error {
	_, err := repo.execute(ctx, repo.getExec(exec),
		`INSERT INTO publications (id, class_id, term, term_key, exams_count, notices_count, published_by, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pub.ID, pub.ClassID, pub.Term, pub.TermKey, pub.ExamsCount, pub.NoticesCount,
		null.NewString(pub.PublishedBy, pub.PublishedBy != ""), pub.PublishedAt.UTC().Truncate(time.Microsecond))
	return errors.Wrap(err, "inserting publication")
}
