package notice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core/notice"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/tests"
)

func TestTargetsOf(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  []notice.Target
	}{
		{name: "no role", want: []notice.Target{notice.TargetAll}},
		{name: "student", roles: []string{user.RoleStudent}, want: []notice.Target{notice.TargetAll, notice.TargetStudent}},
		{name: "parent teacher", roles: []string{user.RoleTeacher, user.RoleParent}, want: []notice.Target{notice.TargetAll, notice.TargetParent, notice.TargetTeacher}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notice.TargetsOf(user.User{Roles: tt.roles}))
		})
	}
}

func TestService_QueryForUser(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	s := testutil.SeedSchool(t, app)
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)

	_, err := app.NoticeRepo.CreateNotices(ctx, []notice.Notice{
		{Title: "Welcome", Message: "Welcome back!", Target: notice.TargetAll, CreatedAt: now.Add(-time.Hour)},
		{Title: "Staff meeting", Message: "Friday 3pm.", Target: notice.TargetTeacher, CreatedAt: now.Add(-time.Minute)},
		{Title: "Result Published: Algebra", Message: "Alice", Target: notice.TargetStudent, RecipientID: s.AliceUser.ID, CreatedAt: now},
		{Title: "Result Published: Algebra", Message: "Alice's parent", Target: notice.TargetParent, RecipientID: s.ParentUser.ID, CreatedAt: now},
	})
	require.NoError(t, err)

	titles := func(t *testing.T, usr user.User) []string {
		notices, err := app.NoticeSvc.QueryForUser(ctx, usr)
		require.NoError(t, err)
		out := make([]string, 0, len(notices))
		for _, n := range notices {
			out = append(out, n.Message)
		}
		return out
	}

	assert.Equal(t, []string{"Alice", "Welcome back!"}, titles(t, s.AliceUser))
	assert.Equal(t, []string{"Welcome back!"}, titles(t, s.BobUser))
	assert.Equal(t, []string{"Alice's parent", "Welcome back!"}, titles(t, s.ParentUser))
	assert.Equal(t, []string{"Friday 3pm.", "Welcome back!"}, titles(t, s.Teacher))
}
