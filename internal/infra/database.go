package infra

import (
	"fmt"

	"storefront/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the GORM connection, sizes the pool and brings the
// schema up to date.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table, then applies the DDL that
// AutoMigrate cannot express. Safe to run repeatedly; integration tests call
// it against a fresh container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.StockLevel{},
		&model.InventoryLogEntry{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusChange{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL statements. Each one uses
// IF NOT EXISTS semantics so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// The log is append-only: refuse UPDATE and DELETE at the database level.
		{"inventory_log append-only trigger function", `
CREATE OR REPLACE FUNCTION inventory_log_append_only() RETURNS trigger AS $$
BEGIN
  RAISE EXCEPTION 'inventory_log is append-only';
END $$ LANGUAGE plpgsql`},
		{"inventory_log append-only trigger", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_inventory_log_append_only') THEN
    CREATE TRIGGER trg_inventory_log_append_only
      BEFORE UPDATE OR DELETE ON inventory_log
      FOR EACH ROW EXECUTE FUNCTION inventory_log_append_only();
  END IF;
END $$`},
		// Per-product history scans used by reconciliation.
		{"idx_inventory_log_product_time",
			`CREATE INDEX IF NOT EXISTS idx_inventory_log_product_time ON inventory_log (product_id, occurred_at)`},
		{"idx_inventory_log_product_seq",
			`CREATE INDEX IF NOT EXISTS idx_inventory_log_product_seq ON inventory_log (product_id, seq)`},
		{"idx_orders_user_created",
			`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC)`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
