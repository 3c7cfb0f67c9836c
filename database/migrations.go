package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

const migrationsTableName = "schema_migrations"

// ensureMigrationTable создает таблицу schema_migrations при необходимости.
func ensureMigrationTable(db *sql.DB) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, migrationsTableName)

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}
	return nil
}

// isMigrationApplied проверяет, была ли уже применена миграция.
func isMigrationApplied(db *sql.DB, name string) (bool, error) {
	if err := ensureMigrationTable(db); err != nil {
		return false, err
	}

	var appliedAt sql.NullTime
	query := fmt.Sprintf(`SELECT applied_at FROM %s WHERE name = ?`, migrationsTableName)
	err := db.QueryRow(query, name).Scan(&appliedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}

	return appliedAt.Valid, nil
}

// markMigrationApplied сохраняет информацию о примененной миграции.
func markMigrationApplied(db *sql.DB, name string) error {
	if err := ensureMigrationTable(db); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s(name, applied_at) VALUES(?, ?)`, migrationsTableName)
	_, err := db.Exec(query, name, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark migration %s as applied: %w", name, err)
	}
	return nil
}

// ensureMigrationApplied выполняет миграцию только один раз.
func ensureMigrationApplied(db *sql.DB, name string, migration func(*sql.DB) error) error {
	applied, err := isMigrationApplied(db, name)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	if err := migration(db); err != nil {
		return err
	}

	if err := markMigrationApplied(db, name); err != nil {
		return err
	}

	log.Printf("[Migrations] %s applied successfully", name)
	return nil
}

// initSchema приводит схему базы к актуальному состоянию.
func initSchema(db *sql.DB) error {
	migrations := []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"create_matcher_tables", createMatcherTables},
		{"create_matcher_indexes", createMatcherIndexes},
	}

	for _, m := range migrations {
		if err := ensureMigrationApplied(db, m.name, m.fn); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}
	return nil
}

// createMatcherTables создает таблицы каталога, клиентов, маппингов и заказов.
//
// На mappings.client_id внешнего ключа нет: сопоставление принимает
// произвольные идентификаторы клиентов из пакетных запросов, запись
// маппинга не должна требовать предварительной регистрации клиента.
func createMatcherTables(db *sql.DB) error {
	createTablesSQL := `
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			category TEXT DEFAULT '',
			price REAL DEFAULT 0,
			pack_qty INTEGER DEFAULT 1,
			attributes TEXT DEFAULT '{}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contact TEXT DEFAULT '',
			telegram_chat_id TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS mappings (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			client_sku TEXT NOT NULL,
			client_name TEXT DEFAULT '',
			product_id TEXT NOT NULL,
			confidence REAL DEFAULT 0,
			match_type TEXT DEFAULT '',
			verified INTEGER DEFAULT 0,
			verified_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(client_id, client_sku),
			FOREIGN KEY(product_id) REFERENCES products(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			order_number TEXT DEFAULT '',
			source TEXT DEFAULT 'upload',
			status TEXT DEFAULT 'new',
			original_file TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			processed_at TIMESTAMP,
			exported_at TIMESTAMP,
			FOREIGN KEY(client_id) REFERENCES clients(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			client_sku TEXT DEFAULT '',
			client_name TEXT DEFAULT '',
			quantity REAL DEFAULT 0,
			original_quantity REAL DEFAULT 0,
			mapped_product_id TEXT,
			mapping_confidence REAL DEFAULT 0,
			mapping_type TEXT DEFAULT '',
			needs_review INTEGER DEFAULT 0,
			reviewed INTEGER DEFAULT 0,
			FOREIGN KEY(order_id) REFERENCES orders(id) ON DELETE CASCADE,
			FOREIGN KEY(mapped_product_id) REFERENCES products(id) ON DELETE SET NULL
		);
	`

	_, err := db.Exec(createTablesSQL)
	return err
}

// createMatcherIndexes создает индексы под основные запросы сервиса.
func createMatcherIndexes(db *sql.DB) error {
	indexesSQL := `
		CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
		CREATE INDEX IF NOT EXISTS idx_mappings_client ON mappings(client_id, verified);
		CREATE INDEX IF NOT EXISTS idx_mappings_product ON mappings(product_id);
		CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
		CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
		CREATE INDEX IF NOT EXISTS idx_order_items_review ON order_items(order_id, needs_review);
	`

	_, err := db.Exec(indexesSQL)
	return err
}
