package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 10, cfg.Pagination.DefaultPageSize)
	assert.Equal(t, 100, cfg.Pagination.MaxPageSize)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, "nb_session", cfg.Session.CookieName)
	assert.True(t, cfg.Cache.Enabled)
}

func TestPaginationDefaultClampedToMax(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("PAGE_SIZE_DEFAULT", 500)
	v.Set("PAGE_SIZE_MAX", 50)
	cfg := fromViper(v)

	assert.Equal(t, 50, cfg.Pagination.MaxPageSize)
	assert.Equal(t, 10, cfg.Pagination.DefaultPageSize)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("bogus", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , ,b"))
}
