package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/notice"
)

type noticeRow struct {
	ID          int64       `boil:"id" db:"id"`
	Title       string      `boil:"title" db:"title"`
	Message     string      `boil:"message" db:"message"`
	Target      string      `boil:"target" db:"target"`
	ClassID     null.Int64  `boil:"class_id" db:"class_id"`
	ExamID      null.Int64  `boil:"exam_id" db:"exam_id"`
	RecipientID null.String `boil:"recipient_id" db:"recipient_id"`
	CreatedAt   time.Time   `boil:"created_at" db:"created_at"`
}

type noticeRepository struct {
	repository
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(exec core.DBExecutor) *noticeRepository {
	return &noticeRepository{repository{exec: exec}}
}

func (repo noticeRepository) boil(n notice.Notice) noticeRow {
	return noticeRow{
		ID:          n.ID,
		Title:       n.Title,
		Message:     n.Message,
		Target:      string(n.Target),
		ClassID:     null.NewInt64(n.ClassID, n.ClassID != 0),
		ExamID:      null.NewInt64(n.ExamID, n.ExamID != 0),
		RecipientID: null.NewString(n.RecipientID, n.RecipientID != ""),
		CreatedAt:   n.CreatedAt.UTC(),
	}
}

func (repo noticeRepository) unboil(row *noticeRow) notice.Notice {
	return notice.Notice{
		ID:          row.ID,
		Title:       row.Title,
		Message:     row.Message,
		Target:      notice.Target(row.Target),
		ClassID:     row.ClassID.Int64,
		ExamID:      row.ExamID.Int64,
		RecipientID: row.RecipientID.String,
		CreatedAt:   row.CreatedAt,
	}
}

func (repo noticeRepository) CreateNotices(ctx context.Context, notices []notice.Notice, exec ...core.DBExecutor) ([]notice.Notice, error) {
	if len(notices) == 0 {
		return []notice.Notice{}, nil
	}
	rows := make([]noticeRow, 0, len(notices))
	for _, n := range notices {
		rows = append(rows, repo.boil(n))
	}

	var ids []*idRow
	err := repo.bindNamed(ctx, repo.getExec(exec), &ids,
		`INSERT INTO notices (title, message, target, class_id, exam_id, recipient_id, created_at)
		VALUES (:title, :message, :target, :class_id, :exam_id, :recipient_id, :created_at)
		RETURNING id`, rows)
	if err != nil {
		return nil, errors.Wrap(err, "inserting notices")
	}

	created := make([]notice.Notice, len(notices))
	copy(created, notices)
	for i := range created {
		if i < len(ids) {
			created[i].ID = ids[i].ID
		}
	}
	return created, nil
}

func (repo noticeRepository) QueryNotices(ctx context.Context, filter notice.Filter, exec ...core.DBExecutor) ([]notice.Notice, error) {
	targets := make([]string, 0, len(filter.Targets))
	for _, t := range filter.Targets {
		targets = append(targets, string(t))
	}
	if len(targets) == 0 {
		targets = append(targets, string(notice.TargetAll))
	}

	var rows []*noticeRow
	err := repo.bind(ctx, repo.getExec(exec), &rows,
		`SELECT id, title, message, target, class_id, exam_id, recipient_id, created_at FROM notices
		WHERE recipient_id = ? OR (recipient_id IS NULL AND target IN (?))
		ORDER BY created_at DESC, id DESC`,
		null.NewString(filter.RecipientID, filter.RecipientID != ""), targets)
	if err != nil {
		return nil, errors.Wrap(err, "querying notices")
	}
	notices := make([]notice.Notice, 0, len(rows))
	for _, row := range rows {
		notices = append(notices, repo.unboil(row))
	}
	return notices, nil
}
