package migrations

import (
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Drops event rows that were saved before the title requirement existed.
func init() {
	m.Register(func(app core.App) error {
		_, err := app.DB().Delete("events", dbx.HashExp{"title": ""}).Execute()
		return err
	}, func(app core.App) error {
		// Irreversible data cleanup.
		return nil
	})
}
