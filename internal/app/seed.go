package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/internal/service"
)

// Seeder returns a snapshot seed hook that creates one recipient in a freshly
// created database, so a new deployment has someone to schedule for. An empty
// name disables seeding.
func Seeder(name, timezone string) func(ctx context.Context, db *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		if name == "" {
			return nil
		}
		svc := service.NewRecipientService(repo.NewStore(db).Recipients(), timezone)
		if _, err := svc.Create(ctx, name, ""); err != nil {
			return fmt.Errorf("app.Seeder: %w", err)
		}
		return nil
	}
}
