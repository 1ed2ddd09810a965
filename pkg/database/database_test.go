package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "college_timetable", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=college_timetable sslmode=disable", dsn)
}

func TestNewSQLiteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "allocations.db")
	db, err := NewSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.DriverName())
	var one int
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
	assert.FileExists(t, path)

	_, err = NewSQLite("")
	assert.Error(t, err)
}
