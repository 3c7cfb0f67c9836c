package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"matchserver/matching"
	"matchserver/normalization"
)

// MappingsRepo хранит выученные сопоставления артикулов клиентов.
// Реализует matching.MappingRepo.
type MappingsRepo struct {
	conn *sql.DB
}

// NewMappingsRepo создает репозиторий маппингов
func NewMappingsRepo(db *DB) *MappingsRepo {
	return &MappingsRepo{conn: db.conn}
}

const mappingColumns = `id, client_id, client_sku, client_name, product_id, confidence, match_type, verified`

func scanMapping(row interface{ Scan(...any) error }) (matching.Mapping, error) {
	var m matching.Mapping
	var clientName, matchType sql.NullString

	if err := row.Scan(&m.ID, &m.ClientID, &m.ClientSKU, &clientName, &m.ProductID, &m.Confidence, &matchType, &m.Verified); err != nil {
		return matching.Mapping{}, err
	}

	m.ClientName = nullString(clientName)
	m.MatchType = nullString(matchType)
	return m, nil
}

// ListVerified возвращает подтвержденные маппинги клиента.
// Ключ карты - нормализованный артикул клиента, под которым кэш
// сопоставления ищет входящие позиции.
func (r *MappingsRepo) ListVerified(ctx context.Context, clientID string) (map[string]matching.Mapping, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM mappings
		WHERE client_id = ? AND verified = 1
	`, mappingColumns)

	rows, err := r.conn.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified mappings: %w", err)
	}
	defer rows.Close()

	mappings := make(map[string]matching.Mapping)
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		key := normalization.NormalizeSKU(m.ClientSKU)
		if key == "" {
			continue
		}
		mappings[key] = m
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}

	return mappings, nil
}

// ListByClient возвращает все маппинги клиента, сначала свежие.
func (r *MappingsRepo) ListByClient(ctx context.Context, clientID string, verifiedOnly bool) ([]matching.Mapping, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM mappings
		WHERE client_id = ?
	`, mappingColumns)
	if verifiedOnly {
		query += ` AND verified = 1`
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.conn.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []matching.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}

	return mappings, nil
}

// Upsert записывает маппинг. Пара (client_id, client_sku) уникальна:
// повторная запись обновляет товар и уверенность, статус verified не
// понижается, время первого подтверждения сохраняется.
func (r *MappingsRepo) Upsert(ctx context.Context, m matching.Mapping) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	var verifiedAt any
	if m.Verified {
		verifiedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO mappings (id, client_id, client_sku, client_name, product_id, confidence, match_type, verified, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, client_sku) DO UPDATE SET
			client_name = COALESCE(NULLIF(excluded.client_name, ''), mappings.client_name),
			product_id = excluded.product_id,
			confidence = excluded.confidence,
			match_type = excluded.match_type,
			verified = MAX(mappings.verified, excluded.verified),
			verified_at = COALESCE(mappings.verified_at, excluded.verified_at),
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.conn.ExecContext(ctx, query,
		m.ID, m.ClientID, m.ClientSKU, m.ClientName, m.ProductID, m.Confidence, m.MatchType, m.Verified, verifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping: %w", err)
	}

	return nil
}

// DeleteByClient удаляет все маппинги клиента.
func (r *MappingsRepo) DeleteByClient(ctx context.Context, clientID string) error {
	if _, err := r.conn.ExecContext(ctx, `DELETE FROM mappings WHERE client_id = ?`, clientID); err != nil {
		return fmt.Errorf("failed to delete client mappings: %w", err)
	}
	return nil
}
