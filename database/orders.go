package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Статусы заказа.
const (
	OrderStatusNew         = "new"
	OrderStatusProcessed   = "processed"
	OrderStatusNeedsReview = "needs_review"
	OrderStatusConfirmed   = "confirmed"
	OrderStatusExported    = "exported"
)

// Order структура заказа клиента
type Order struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	OrderNumber  string     `json:"order_number,omitempty"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	OriginalFile string     `json:"original_file,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ExportedAt   *time.Time `json:"exported_at,omitempty"`
	ItemCount    int        `json:"item_count"`
	ReviewCount  int        `json:"review_count"`
}

// OrderItem структура позиции заказа. Поля товара заполняются
// из каталога при чтении, если позиция сопоставлена.
type OrderItem struct {
	ID                string  `json:"id"`
	OrderID           string  `json:"order_id"`
	ClientSKU         string  `json:"client_sku"`
	ClientName        string  `json:"client_name"`
	Quantity          float64 `json:"quantity"`
	OriginalQuantity  float64 `json:"original_quantity"`
	MappedProductID   string  `json:"mapped_product_id,omitempty"`
	ProductSKU        string  `json:"product_sku,omitempty"`
	ProductName       string  `json:"product_name,omitempty"`
	PackQty           int     `json:"pack_qty,omitempty"`
	MappingConfidence float64 `json:"mapping_confidence"`
	MappingType       string  `json:"mapping_type,omitempty"`
	NeedsReview       bool    `json:"needs_review"`
	Reviewed          bool    `json:"reviewed"`
}

// OrdersRepo хранит заказы и их позиции
type OrdersRepo struct {
	conn *sql.DB
}

// NewOrdersRepo создает репозиторий заказов
func NewOrdersRepo(db *DB) *OrdersRepo {
	return &OrdersRepo{conn: db.conn}
}

const orderColumns = `
	o.id, o.client_id, o.order_number, o.source, o.status, o.original_file,
	o.created_at, o.processed_at, o.exported_at,
	(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id),
	(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id AND i.needs_review = 1 AND i.reviewed = 0)
`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	var orderNumber, source, status, originalFile sql.NullString
	var processedAt, exportedAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.ClientID, &orderNumber, &source, &status, &originalFile,
		&o.CreatedAt, &processedAt, &exportedAt,
		&o.ItemCount, &o.ReviewCount,
	)
	if err != nil {
		return Order{}, err
	}

	o.OrderNumber = nullString(orderNumber)
	o.Source = nullString(source)
	o.Status = nullString(status)
	o.OriginalFile = nullString(originalFile)
	o.ProcessedAt = nullTimePtr(processedAt)
	o.ExportedAt = nullTimePtr(exportedAt)
	return o, nil
}

// Create создает заказ. Пустой ID генерируется, пустой статус
// трактуется как новый заказ.
func (r *OrdersRepo) Create(ctx context.Context, o Order) (Order, error) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Source == "" {
		o.Source = "upload"
	}
	if o.Status == "" {
		o.Status = OrderStatusNew
	}

	query := `
		INSERT INTO orders (id, client_id, order_number, source, status, original_file)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.conn.ExecContext(ctx, query, o.ID, o.ClientID, o.OrderNumber, o.Source, o.Status, o.OriginalFile)
	if err != nil {
		return Order{}, fmt.Errorf("failed to create order: %w", err)
	}

	return r.Get(ctx, o.ID)
}

// Get получает заказ по ID со счетчиками позиций.
func (r *OrdersRepo) Get(ctx context.Context, id string) (Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders o WHERE o.id = ?`, orderColumns)

	o, err := scanOrder(r.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// List возвращает заказы, сначала свежие. Пустой clientID отдает
// заказы всех клиентов, limit <= 0 снимает ограничение.
func (r *OrdersRepo) List(ctx context.Context, clientID string, limit int) ([]Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders o`, orderColumns)
	args := []any{}

	if clientID != "" {
		query += ` WHERE o.client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY o.created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus меняет статус заказа. Первый переход в обработанное
// состояние фиксирует processed_at.
func (r *OrdersRepo) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE orders
		SET status = ?,
		    processed_at = CASE
		        WHEN ? IN ('processed', 'needs_review', 'confirmed') AND processed_at IS NULL
		        THEN CURRENT_TIMESTAMP
		        ELSE processed_at
		    END
		WHERE id = ?
	`

	result, err := r.conn.ExecContext(ctx, query, status, status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
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

// MarkExported фиксирует выгрузку заказа в 1С-формат.
func (r *OrdersRepo) MarkExported(ctx context.Context, id string) error {
	query := `
		UPDATE orders
		SET status = ?, exported_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.conn.ExecContext(ctx, query, OrderStatusExported, id)
	if err != nil {
		return fmt.Errorf("failed to mark order exported: %w", err)
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

// InsertItems записывает позиции заказа одной транзакцией.
func (r *OrdersRepo) InsertItems(ctx context.Context, orderID string, items []OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO order_items
		(id, order_id, client_sku, client_name, quantity, original_quantity,
		 mapped_product_id, mapping_confidence, mapping_type, needs_review, reviewed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.New().String()
		}

		// NULL вместо пустой строки, иначе внешний ключ на products не пройдет
		var mappedProductID any
		if it.MappedProductID != "" {
			mappedProductID = it.MappedProductID
		}

		_, err := stmt.ExecContext(ctx,
			it.ID, orderID, it.ClientSKU, it.ClientName, it.Quantity, it.OriginalQuantity,
			mappedProductID, it.MappingConfidence, it.MappingType, it.NeedsReview, it.Reviewed)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit items: %w", err)
	}
	return nil
}

const orderItemColumns = `
	i.id, i.order_id, i.client_sku, i.client_name, i.quantity, i.original_quantity,
	i.mapped_product_id, i.mapping_confidence, i.mapping_type, i.needs_review, i.reviewed,
	p.sku, p.name, p.pack_qty
`

func scanOrderItem(row interface{ Scan(...any) error }) (OrderItem, error) {
	var it OrderItem
	var clientSKU, clientName, mappedProductID, mappingType sql.NullString
	var productSKU, productName sql.NullString
	var packQty sql.NullInt64

	err := row.Scan(
		&it.ID, &it.OrderID, &clientSKU, &clientName, &it.Quantity, &it.OriginalQuantity,
		&mappedProductID, &it.MappingConfidence, &mappingType, &it.NeedsReview, &it.Reviewed,
		&productSKU, &productName, &packQty,
	)
	if err != nil {
		return OrderItem{}, err
	}

	it.ClientSKU = nullString(clientSKU)
	it.ClientName = nullString(clientName)
	it.MappedProductID = nullString(mappedProductID)
	it.MappingType = nullString(mappingType)
	it.ProductSKU = nullString(productSKU)
	it.ProductName = nullString(productName)
	if packQty.Valid {
		it.PackQty = int(packQty.Int64)
	}
	return it, nil
}

// ListItems возвращает позиции заказа в порядке добавления,
// с артикулом и названием сопоставленного товара.
func (r *OrdersRepo) ListItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM order_items i
		LEFT JOIN products p ON p.id = i.mapped_product_id
		WHERE i.order_id = ?
		ORDER BY i.rowid
	`, orderItemColumns)

	rows, err := r.conn.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// GetItem получает позицию заказа по ID.
func (r *OrdersRepo) GetItem(ctx context.Context, itemID string) (OrderItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM order_items i
		LEFT JOIN products p ON p.id = i.mapped_product_id
		WHERE i.id = ?
	`, orderItemColumns)

	it, err := scanOrderItem(r.conn.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrderItem{}, ErrNotFound
		}
		return OrderItem{}, fmt.Errorf("failed to get order item: %w", err)
	}
	return it, nil
}

// UpdateItemMapping переназначает товар позиции вручную и снимает
// с нее флаг проверки.
func (r *OrdersRepo) UpdateItemMapping(ctx context.Context, itemID, productID string, confidence float64, matchType string) error {
	query := `
		UPDATE order_items
		SET mapped_product_id = ?, mapping_confidence = ?, mapping_type = ?,
		    needs_review = 0, reviewed = 1
		WHERE id = ?
	`

	result, err := r.conn.ExecContext(ctx, query, productID, confidence, matchType, itemID)
	if err != nil {
		return fmt.Errorf("failed to update item mapping: %w", err)
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

// MarkReviewed помечает все позиции заказа проверенными.
func (r *OrdersRepo) MarkReviewed(ctx context.Context, orderID string) error {
	query := `
		UPDATE order_items
		SET needs_review = 0, reviewed = 1
		WHERE order_id = ?
	`

	if _, err := r.conn.ExecContext(ctx, query, orderID); err != nil {
		return fmt.Errorf("failed to mark items reviewed: %w", err)
	}
	return nil
}
