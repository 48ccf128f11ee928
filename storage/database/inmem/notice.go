package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/notice"
	"github.com/trezcool/alama/core/publish"
)

type noticeRepository struct {
	db *DB
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *DB) *noticeRepository {
	return &noticeRepository{db: db}
}

func (repo *noticeRepository) CreateNotices(_ context.Context, notices []notice.Notice, _ ...core.DBExecutor) ([]notice.Notice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]notice.Notice, 0, len(notices))
	for _, n := range notices {
		n.ID = repo.db.nextPK()
		repo.db.t.notices = append(repo.db.t.notices, n)
		created = append(created, n)
	}
	return created, nil
}

func (repo *noticeRepository) QueryNotices(_ context.Context, filter notice.Filter, _ ...core.DBExecutor) ([]notice.Notice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	targets := make(map[notice.Target]bool, len(filter.Targets)+1)
	targets[notice.TargetAll] = len(filter.Targets) == 0
	for _, t := range filter.Targets {
		targets[t] = true
	}

	notices := make([]notice.Notice, 0)
	for _, n := range repo.db.t.notices {
		if n.RecipientID != "" {
			if filter.RecipientID != "" && n.RecipientID == filter.RecipientID {
				notices = append(notices, n)
			}
			continue
		}
		if targets[n.Target] {
			notices = append(notices, n)
		}
	}
	sort.SliceStable(notices, func(i, j int) bool {
		if !notices[i].CreatedAt.Equal(notices[j].CreatedAt) {
			return notices[i].CreatedAt.After(notices[j].CreatedAt)
		}
		return notices[i].ID > notices[j].ID
	})
	return notices, nil
}

type publicationRepository struct {
	db *DB
}

var _ publish.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *DB) *publicationRepository {
	return &publicationRepository{db: db}
}

func (repo *publicationRepository) CreatePublication(_ context.Context, pub publish.Publication, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.t.publications = append(repo.db.t.publications, pub)
	return nil
}

// Publications lists the recorded publications, oldest first.
func (repo *publicationRepository) Publications() []publish.Publication {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return append([]publish.Publication(nil), repo.db.t.publications...)
}
