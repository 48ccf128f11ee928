package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENV", "")

		conf := NewConfig()
		assert.Equal(t, "DEV", conf.Env)
		assert.False(t, conf.TestMode)
		assert.True(t, conf.Debug)
		assert.Equal(t, "Alama", conf.AppName)
		assert.Equal(t, "noreply@localhost", conf.DefaultFromEmail.Address)
		assert.Equal(t, "localhost:5432", conf.Database.Address())
		assert.Equal(t, 10*time.Minute, conf.Report.CacheTTL)
		assert.Equal(t, 7*24*time.Hour, conf.Server.JWTExpirationDelta)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("TEST_DEBUG", "false")
		t.Setenv("TEST_DATABASE_HOST", "db")
		t.Setenv("TEST_REDIS_ADDRESS", "cache:6379")
		t.Setenv("TEST_REPORT_CACHETTL", "30s")
		t.Setenv("TEST_DEFAULTFROMEMAIL", "School <school@test.cd>")

		conf := NewConfig()
		assert.Equal(t, "TEST", conf.Env)
		assert.True(t, conf.TestMode)
		assert.False(t, conf.Debug)
		assert.Equal(t, "db:5432", conf.Database.Address())
		assert.Equal(t, "cache:6379", conf.RedisAddress)
		assert.Equal(t, 30*time.Second, conf.Report.CacheTTL)
		assert.Equal(t, "School", conf.DefaultFromEmail.Name)
	})
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Grade 6", CleanString("  Grade 6 "))
	assert.Equal(t, "kabila", CleanString(" KABILA ", true))
}
