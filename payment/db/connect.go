package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the MySQL database behind dsn. Unique violations are
// translated to gorm.ErrDuplicatedKey.
func Connect(dsn string) (*gorm.DB, error) {
	return Open(mysql.Open(dsn))
}

func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&PaymentRecord{})
}
