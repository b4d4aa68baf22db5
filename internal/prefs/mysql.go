package prefs

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/errors"
)

// MySQLStore implements Store on a shared MySQL server.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open connects to the MySQL server and migrates the schema.
func (store *MySQLStore) Open() error {
	mysqlSettings := store.Settings.Preferences.MySQL

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		mysqlSettings.Username, mysqlSettings.Password,
		mysqlSettings.Host, mysqlSettings.Port,
		mysqlSettings.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger(store.Settings.Preferences.Debug)})
	if err != nil {
		// The DSN carries credentials, report the endpoint instead.
		return errors.New(err).
			Component("prefs").
			Category(errors.CategoryDatabase).
			Context("operation", "open_database").
			Context("db_type", "MySQL").
			Context("host", mysqlSettings.Host).
			Context("database", mysqlSettings.Database).
			Build()
	}

	store.bind(db, store.Settings)
	return performAutoMigration(db, "MySQL")
}
