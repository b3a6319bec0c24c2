package database

import (
	"fmt"
	"log"

	"online_quiz_backend/internal/config"
	"online_quiz_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")
	return db, nil
}

// Migrate creates or updates the schema. Shared with the sqlite-backed test
// databases.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.Question{},
		&model.QuestionOption{},
		&model.QuizAttempt{},
		&model.AttemptAnswer{},
	)
}
