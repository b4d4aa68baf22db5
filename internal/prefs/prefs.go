// Package prefs persists user-facing playback settings, currently the
// per-pool master volume and mute flag, across restarts. Values are stored
// as (name, key, value) rows where name identifies the soundpool instance
// and key arrives already prefixed with the pool name by the playback
// manager. Backends are selected by configuration: SQLite for a local file,
// MySQL for a shared server, or an in-memory fallback when neither is
// enabled.
package prefs

import (
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/logging"
)

// Store persists preference values. Lookups return false when the key has
// never been written; write failures are returned to the caller. A Store
// satisfies the playback manager's preference-store dependency.
type Store interface {
	Open() error
	GetFloat(key string) (float64, bool)
	SetFloat(key string, value float64) error
	GetInt(key string) (int, bool)
	SetInt(key string, value int) error
	Close() error
}

// New selects the store backend from the configuration. When neither SQLite
// nor MySQL is enabled preferences live in memory and are lost on exit.
func New(settings *conf.Settings) Store {
	switch {
	case settings.Preferences.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Preferences.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return NewMemoryStore()
	}
}

// Preference is one persisted key/value pair. Values are stored as strings
// and converted on access so both backends share a single schema.
type Preference struct {
	// Name scopes keys to one soundpool instance so several deployments
	// can share a database.
	Name string `gorm:"column:name;primaryKey;size:64"`
	// Key is stored as pref_key because KEY is a reserved word in MySQL.
	Key       string    `gorm:"column:pref_key;primaryKey;size:128"`
	Value     string    `gorm:"column:value;size:255"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// DataStore implements the preference reads and writes shared by the SQLite
// and MySQL backends. The concrete stores provide Open.
type DataStore struct {
	DB *gorm.DB // GORM database instance

	name   string
	logger *slog.Logger
}

// bind attaches the shared fields once a concrete store has opened its
// database handle.
func (ds *DataStore) bind(db *gorm.DB, settings *conf.Settings) {
	ds.DB = db
	ds.name = settings.Main.Name
	ds.logger = logging.ForService("prefs")
	if ds.logger == nil {
		ds.logger = slog.Default()
	}
}

// GetFloat returns the stored float for key. The second return is false
// when the key has never been written or the stored value does not parse.
func (ds *DataStore) GetFloat(key string) (float64, bool) {
	value, ok := ds.get(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		ds.logger.Warn("stored preference is not a float", "key", key, "value", value)
		return 0, false
	}
	return f, true
}

// SetFloat stores a float value for key, replacing any previous value.
func (ds *DataStore) SetFloat(key string, value float64) error {
	return ds.set(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// GetInt returns the stored integer for key. The second return is false
// when the key has never been written or the stored value does not parse.
func (ds *DataStore) GetInt(key string) (int, bool) {
	value, ok := ds.get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		ds.logger.Warn("stored preference is not an integer", "key", key, "value", value)
		return 0, false
	}
	return n, true
}

// SetInt stores an integer value for key, replacing any previous value.
func (ds *DataStore) SetInt(key string, value int) error {
	return ds.set(key, strconv.Itoa(value))
}

func (ds *DataStore) get(key string) (string, bool) {
	if ds.DB == nil {
		return "", false
	}
	var pref Preference
	// Struct-based conditions keep identifier quoting to GORM.
	err := ds.DB.Where(&Preference{Name: ds.name, Key: key}).First(&pref).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			ds.logger.Error("preference lookup failed", "key", key, "error", err)
		}
		return "", false
	}
	return pref.Value, true
}

func (ds *DataStore) set(key, value string) error {
	if ds.DB == nil {
		return errors.Newf("preference store is not open").
			Component("prefs").
			Category(errors.CategoryState).
			Context("key", key).
			Build()
	}
	pref := Preference{Name: ds.name, Key: key, Value: value, UpdatedAt: time.Now()}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "pref_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return errors.New(err).
			Component("prefs").
			Category(errors.CategoryDatabase).
			Context("operation", "save_preference").
			Context("key", key).
			Build()
	}
	return nil
}

// Close releases the underlying database handle.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return errors.New(err).
			Component("prefs").
			Category(errors.CategoryDatabase).
			Context("operation", "close_database").
			Build()
	}
	if err := sqlDB.Close(); err != nil {
		return errors.New(err).
			Component("prefs").
			Category(errors.CategoryDatabase).
			Context("operation", "close_database").
			Build()
	}
	ds.DB = nil
	return nil
}

// createGormLogger silences routine query logging; preferences generate a
// couple of point queries per session. Debug mode restores full logging.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Silent
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.Default.LogMode(level)
}

// performAutoMigration creates or upgrades the preferences table.
func performAutoMigration(db *gorm.DB, dbType string) error {
	if err := db.AutoMigrate(&Preference{}); err != nil {
		return errors.New(err).
			Component("prefs").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migration").
			Context("db_type", dbType).
			Build()
	}
	return nil
}
