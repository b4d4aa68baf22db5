package prefs

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/errors"
)

// SQLiteStore implements Store on a local SQLite database file.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open creates the database file, and its parent directory if needed, and
// migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Preferences.SQLite.Path
	if path == "" {
		return errors.Newf("sqlite preference store enabled but no path configured").
			Component("prefs").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("prefs").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_directory").
				Context("path", dir).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger(store.Settings.Preferences.Debug)})
	if err != nil {
		return errors.New(err).
			Component("prefs").
			Category(errors.CategoryDatabase).
			Context("operation", "open_database").
			Context("db_type", "SQLite").
			Build()
	}

	store.bind(db, store.Settings)
	return performAutoMigration(db, "SQLite")
}
