package boiledrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grading"
)

type execCall struct {
	query string
	args  []interface{}
}

// recordingExec records the statements it is given. Queries are not supported.
type recordingExec struct {
	core.DBExecutor
	calls []execCall
}

func (ex *recordingExec) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	ex.calls = append(ex.calls, execCall{query: query, args: args})
	return driver.RowsAffected(len(args) / 4), nil
}

func TestGradeScaleRepository_ReplaceScale(t *testing.T) {
	ctx := context.Background()

	t.Run("batch insert", func(t *testing.T) {
		ex := &recordingExec{}
		repo := NewGradeScaleRepository(ex)
		scale := grading.Scale{
			{Grade: "A", MinPercent: 80, MaxPercent: 100},
			{Grade: "B", MinPercent: 0, MaxPercent: 79.9},
		}

		require.NoError(t, repo.ReplaceScale(ctx, scale))
		require.Len(t, ex.calls, 2)
		assert.Equal(t, "DELETE FROM grade_scale", ex.calls[0].query)

		insert := ex.calls[1]
		assert.Contains(t, insert.query, "INSERT INTO grade_scale")
		assert.Contains(t, insert.query, "$8")
		assert.NotContains(t, insert.query, "RETURNING")
		assert.Equal(t, []interface{}{1, "A", 80.0, 100.0, 2, "B", 0.0, 79.9}, insert.args)
	})

	t.Run("empty scale", func(t *testing.T) {
		ex := &recordingExec{}
		repo := NewGradeScaleRepository(ex)

		require.NoError(t, repo.ReplaceScale(ctx, grading.Scale{}))
		require.Len(t, ex.calls, 1)
		assert.Equal(t, "DELETE FROM grade_scale", ex.calls[0].query)
	})
}
