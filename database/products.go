package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"matchserver/extractors"
	"matchserver/matching"
)

// ProductsRepo хранит каталог товаров поставщика.
// Реализует matching.CatalogRepo.
type ProductsRepo struct {
	conn *sql.DB
}

// NewProductsRepo создает репозиторий каталога
func NewProductsRepo(db *DB) *ProductsRepo {
	return &ProductsRepo{conn: db.conn}
}

const productColumns = `id, sku, name, category, price, pack_qty`

func scanProduct(row interface{ Scan(...any) error }) (matching.Product, error) {
	var p matching.Product
	var category sql.NullString
	var price sql.NullFloat64
	var packQty sql.NullInt64

	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &category, &price, &packQty); err != nil {
		return matching.Product{}, err
	}

	p.Category = nullString(category)
	if price.Valid {
		p.Price = price.Float64
	}
	if packQty.Valid {
		p.PackQty = int(packQty.Int64)
	}
	return p, nil
}

// ListAll возвращает весь каталог, отсортированный по артикулу.
func (r *ProductsRepo) ListAll(ctx context.Context) ([]matching.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY sku`, productColumns)

	rows, err := r.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []matching.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// GetByID получает товар по внутреннему идентификатору.
func (r *ProductsRepo) GetByID(ctx context.Context, id string) (matching.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ?`, productColumns)

	p, err := scanProduct(r.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return matching.Product{}, ErrNotFound
		}
		return matching.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetBySKU получает товар по артикулу поставщика.
func (r *ProductsRepo) GetBySKU(ctx context.Context, sku string) (matching.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE sku = ?`, productColumns)

	p, err := scanProduct(r.conn.QueryRowContext(ctx, query, sku))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return matching.Product{}, ErrNotFound
		}
		return matching.Product{}, fmt.Errorf("failed to get product by sku: %w", err)
	}
	return p, nil
}

// Create добавляет товар в каталог. Пустой ID генерируется автоматически.
func (r *ProductsRepo) Create(ctx context.Context, p matching.Product) (matching.Product, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PackQty < 1 {
		p.PackQty = 1
	}

	query := `
		INSERT INTO products (id, sku, name, category, price, pack_qty, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.conn.ExecContext(ctx, query, p.ID, p.SKU, p.Name, p.Category, p.Price, p.PackQty, attributesJSON(p))
	if err != nil {
		return matching.Product{}, fmt.Errorf("failed to create product: %w", err)
	}

	return r.GetByID(ctx, p.ID)
}

// Update обновляет товар каталога по ID.
func (r *ProductsRepo) Update(ctx context.Context, p matching.Product) error {
	if p.PackQty < 1 {
		p.PackQty = 1
	}

	query := `
		UPDATE products
		SET sku = ?, name = ?, category = ?, price = ?, pack_qty = ?,
		    attributes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.conn.ExecContext(ctx, query, p.SKU, p.Name, p.Category, p.Price, p.PackQty, attributesJSON(p), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет товар каталога вместе с выученными на него маппингами.
// Позиции заказов теряют ссылку на товар, но остаются в истории.
func (r *ProductsRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mappings WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete product mappings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE order_items SET mapped_product_id = NULL WHERE mapped_product_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach order items: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// BulkUpsert загружает каталог пакетом: существующие артикулы обновляются,
// новые вставляются. Возвращает число обработанных позиций.
func (r *ProductsRepo) BulkUpsert(ctx context.Context, products []matching.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (id, sku, name, category, price, pack_qty, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			price = excluded.price,
			pack_qty = excluded.pack_qty,
			attributes = excluded.attributes,
			updated_at = CURRENT_TIMESTAMP
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, p := range products {
		if strings.TrimSpace(p.SKU) == "" || strings.TrimSpace(p.Name) == "" {
			continue
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.PackQty < 1 {
			p.PackQty = 1
		}

		if _, err := stmt.ExecContext(ctx, p.ID, p.SKU, p.Name, p.Category, p.Price, p.PackQty, attributesJSON(p)); err != nil {
			return 0, fmt.Errorf("failed to upsert product %s: %w", p.SKU, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	return count, nil
}

// Count возвращает размер каталога.
func (r *ProductsRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// attributesJSON извлекает атрибуты товара из названия и сериализует их
// в JSON для колонки attributes. Атрибуты нужны для ручного разбора
// спорных позиций, сопоставление пересчитывает их на лету.
func attributesJSON(p matching.Product) string {
	attrs := map[string]any{}

	if t := extractors.ExtractProductType(p.Name); t != "" {
		attrs["type"] = t
	}
	if ps, ok := extractors.ExtractPipeSize(p.Name); ok {
		attrs["diameter"] = ps.Diameter
		attrs["length"] = ps.Length
	}
	if sizes := extractors.ExtractFittingSize(p.Name); len(sizes) > 0 {
		attrs["sizes"] = sizes
	}
	if ts, ok := extractors.ExtractThreadSize(p.Name); ok {
		attrs["thread_mm"] = ts.MM
		attrs["thread_inch"] = ts.Inch
	}
	if dir := extractors.ExtractThreadDirection(p.Name); dir != "" {
		attrs["thread_dir"] = dir
	}
	if angle, ok := extractors.ExtractAngle(p.Name); ok {
		attrs["angle"] = angle
	}
	if color := extractors.ExtractColor(p.Name); color != "" {
		attrs["color"] = color
	}
	if extractors.IsEco(p.Name) {
		attrs["eco"] = true
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		return "{}"
	}
	return string(data)
}
