// Package migrations предоставляет обертку над goose для управления
// схемой хранилища записей выполнения.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// MigrationStatus представляет статус миграции
type MigrationStatus struct {
	Version   int64
	Name      string
	AppliedAt *time.Time
	Status    string // "pending", "applied"
}

func setup() error {
	goose.SetBaseFS(embeddedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Up применяет все pending миграции
func Up(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Down откатывает последнюю миграцию
func Down(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.Down(db, "sql"); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// Version возвращает текущую версию схемы
func Version(db *sql.DB) (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// Status возвращает статус всех миграций
func Status(db *sql.DB) ([]MigrationStatus, error) {
	if err := setup(); err != nil {
		return nil, err
	}

	collected, err := goose.CollectMigrations("sql", 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to collect migrations: %w", err)
	}

	currentVersion, err := goose.GetDBVersion(db)
	if err != nil {
		currentVersion = 0
	}

	var statuses []MigrationStatus
	for _, migration := range collected {
		status := MigrationStatus{
			Version: migration.Version,
			Name:    migration.Source,
			Status:  "pending",
		}

		if migration.Version <= currentVersion {
			var appliedAt time.Time
			err := db.QueryRow(
				"SELECT tstamp FROM goose_db_version WHERE version_id = $1 AND is_applied = true ORDER BY tstamp DESC LIMIT 1",
				migration.Version,
			).Scan(&appliedAt)
			if err == nil {
				status.AppliedAt = &appliedAt
				status.Status = "applied"
			}
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}
