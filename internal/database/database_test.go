package database

import (
	"io"
	"testing"

	"staff_srv/internal/config"
	"staff_srv/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseSQLiteAndMigrate(t *testing.T) {
	db, err := NewDatabase(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	require.NoError(t, AutoMigrate(db, logger))

	for _, table := range []string{"employees", "requests", "templates"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	emp := models.Employee{LastName: "Иванов", FirstName: "Иван", SudisLogin: "ivanov"}
	emp.Normalize()
	require.NoError(t, db.Create(&emp).Error)
	assert.NotZero(t, emp.ID)
}

func TestNewDatabaseUnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNewFromConfig(t *testing.T) {
	db, err := NewFromConfig(config.Config{DB: config.DB{Driver: DriverSQLite, DSN: ":memory:"}})
	require.NoError(t, err)
	assert.NotNil(t, db)
}
