package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studyshelf/studyshelf/internal/storage"
)

const migrationClampNegativeAggregates = "2026-07-14_clamp_negative_aggregates"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClampNegativeAggregates, apply: clampNegativeAggregates},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// clampNegativeAggregates repairs rows written before reputation and
// vote counters were clamped at zero in the adapters.
func clampNegativeAggregates(db *gorm.DB) error {
	if err := db.Model(&storage.User{}).
		Where("reputation < 0").
		Update("reputation", 0).Error; err != nil {
		return err
	}
	if err := db.Model(&storage.Note{}).
		Where("upvotes < 0").
		Update("upvotes", 0).Error; err != nil {
		return err
	}
	return db.Model(&storage.Note{}).
		Where("downvotes < 0").
		Update("downvotes", 0).Error
}
