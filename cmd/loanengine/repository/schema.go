package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/loandesk/loanengine/common/db"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema creates the tables and indexes if they do not exist.
// Wired as the bootstrap DB init hook.
func InitSchema(database *db.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := database.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
