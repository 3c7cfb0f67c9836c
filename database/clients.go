package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client структура клиента-заказчика
type Client struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Contact        string    `json:"contact,omitempty"`
	TelegramChatID string    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ClientsRepo хранит клиентов сервиса
type ClientsRepo struct {
	conn *sql.DB
}

// NewClientsRepo создает репозиторий клиентов
func NewClientsRepo(db *DB) *ClientsRepo {
	return &ClientsRepo{conn: db.conn}
}

func scanClient(row interface{ Scan(...any) error }) (Client, error) {
	var c Client
	var contact, telegramChatID sql.NullString

	if err := row.Scan(&c.ID, &c.Name, &contact, &telegramChatID, &c.CreatedAt); err != nil {
		return Client{}, err
	}

	c.Contact = nullString(contact)
	c.TelegramChatID = nullString(telegramChatID)
	return c, nil
}

// Create создает клиента. Пустой ID генерируется автоматически.
func (r *ClientsRepo) Create(ctx context.Context, c Client) (Client, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
		INSERT INTO clients (id, name, contact, telegram_chat_id)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.conn.ExecContext(ctx, query, c.ID, c.Name, c.Contact, c.TelegramChatID)
	if err != nil {
		return Client{}, fmt.Errorf("failed to create client: %w", err)
	}

	return r.Get(ctx, c.ID)
}

// Get получает клиента по ID.
func (r *ClientsRepo) Get(ctx context.Context, id string) (Client, error) {
	query := `SELECT id, name, contact, telegram_chat_id, created_at FROM clients WHERE id = ?`

	c, err := scanClient(r.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// List возвращает всех клиентов, сначала новые.
func (r *ClientsRepo) List(ctx context.Context) ([]Client, error) {
	query := `SELECT id, name, contact, telegram_chat_id, created_at FROM clients ORDER BY created_at DESC`

	rows, err := r.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// Update обновляет непустые поля клиента.
func (r *ClientsRepo) Update(ctx context.Context, c Client) error {
	setParts := []string{}
	args := []any{}

	if c.Name != "" {
		setParts = append(setParts, "name = ?")
		args = append(args, c.Name)
	}
	if c.Contact != "" {
		setParts = append(setParts, "contact = ?")
		args = append(args, c.Contact)
	}
	if c.TelegramChatID != "" {
		setParts = append(setParts, "telegram_chat_id = ?")
		args = append(args, c.TelegramChatID)
	}

	if len(setParts) == 0 {
		return fmt.Errorf("no fields to update")
	}

	query := fmt.Sprintf(`UPDATE clients SET %s WHERE id = ?`, strings.Join(setParts, ", "))
	args = append(args, c.ID)

	result, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
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

// Delete удаляет клиента вместе с его маппингами, заказами и
// позициями заказов одной транзакцией.
func (r *ClientsRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mappings WHERE client_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete client mappings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id IN (SELECT id FROM orders WHERE client_id = ?)`, id); err != nil {
		return fmt.Errorf("failed to delete client order items: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE client_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete client orders: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
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
