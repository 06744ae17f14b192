package db

import (
	"fmt"

	"gorm.io/gorm"
)

// MigrateUniqueIndexes rebuilds the unique name indexes so they cooperate
// with gorm soft deletes: a deleted row must not block reuse of its name.
// AutoMigrate's plain uniqueIndex does not know about deleted_at, so the
// indexes are created per dialect here.
func MigrateUniqueIndexes(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	type idx struct {
		name, table, column string
	}
	idxs := []idx{
		{"ux_simulators_name", "simulators", "name"},
		{"ux_simulators_address", "simulators", "address"},
		{"ux_organizations_name", "organizations", "name"},
		{"ux_topology_templates_name", "topology_templates", "name"},
		{"ux_user_profiles_user", "user_profiles", "user_id"},
	}

	dialect := db.Dialector.Name()
	for _, i := range idxs {
		// drop the index AutoMigrate may have created from the struct tag
		oldName := fmt.Sprintf("idx_%s_%s", i.table, i.column)

		switch dialect {
		case "postgres":
			_ = db.Exec(fmt.Sprintf(`DROP INDEX IF EXISTS %s`, oldName)).Error
			// partial unique index, much better fit for soft-delete
			if err := db.Exec(fmt.Sprintf(
				`CREATE UNIQUE INDEX IF NOT EXISTS %s ON "%s" ("%s") WHERE "deleted_at" IS NULL`,
				i.name, i.table, i.column)).Error; err != nil {
				return fmt.Errorf("create %s: %w", i.name, err)
			}

		case "mysql":
			_ = db.Exec(fmt.Sprintf("DROP INDEX `%s` ON `%s`", oldName, i.table)).Error
			if err := db.Exec(fmt.Sprintf(
				"CREATE UNIQUE INDEX `%s` ON `%s` (`%s`, `deleted_at`)",
				i.name, i.table, i.column)).Error; err != nil {
				return fmt.Errorf("create %s: %w", i.name, err)
			}

		case "sqlite":
			_ = db.Exec(fmt.Sprintf(`DROP INDEX IF EXISTS %s`, oldName)).Error
			if err := db.Exec(fmt.Sprintf(
				`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s) WHERE deleted_at IS NULL`,
				i.name, i.table, i.column)).Error; err != nil {
				return fmt.Errorf("create %s: %w", i.name, err)
			}

		default:
			return fmt.Errorf("unsupported dialect: %s", dialect)
		}
	}
	return nil
}
