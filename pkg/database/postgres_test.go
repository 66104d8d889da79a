package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/noticeboard/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "nb", Password: "secret", Name: "noticeboard", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=nb password=secret dbname=noticeboard sslmode=disable", dsn)
}
