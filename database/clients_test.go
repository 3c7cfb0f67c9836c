package database

import (
	"context"
	"errors"
	"testing"

	"matchserver/matching"
)

func TestClientsCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewClientsRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, Client{
		Name:           "ООО СантехОпт",
		Contact:        "sales@santehopt.ru",
		TelegramChatID: "123456",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated client ID")
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Name != "ООО СантехОпт" || got.Contact != "sales@santehopt.ru" || got.TelegramChatID != "123456" {
		t.Fatalf("unexpected client: %+v", got)
	}
}

func TestClientsGetNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := NewClientsRepo(db).Get(context.Background(), "нет-такого")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientsList(t *testing.T) {
	db := newTestDB(t)
	repo := NewClientsRepo(db)

	insertTestClient(t, db, "Клиент А")
	insertTestClient(t, db, "Клиент Б")

	clients, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
}

func TestClientsUpdateOnlyNonEmptyFields(t *testing.T) {
	db := newTestDB(t)
	repo := NewClientsRepo(db)
	ctx := context.Background()

	created := insertTestClient(t, db, "Старое имя")

	err := repo.Update(ctx, Client{ID: created.ID, Contact: "+7 900 000-00-00"})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Name != "Старое имя" {
		t.Fatalf("expected name untouched, got %q", got.Name)
	}
	if got.Contact != "+7 900 000-00-00" {
		t.Fatalf("expected contact updated, got %q", got.Contact)
	}

	if err := repo.Update(ctx, Client{ID: created.ID}); err == nil {
		t.Fatal("expected error for update without fields")
	}
}

func TestClientsDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	clients := NewClientsRepo(db)
	mappings := NewMappingsRepo(db)
	orders := NewOrdersRepo(db)
	ctx := context.Background()

	client := insertTestClient(t, db, "Удаляемый клиент")
	p := insertTestProduct(t, db, "101999", "Кран шаровой 32", 5)

	err := mappings.Upsert(ctx, matching.Mapping{
		ClientID:  client.ID,
		ClientSKU: "КРН-32",
		ProductID: p.ID,
		Verified:  true,
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	order, err := orders.Create(ctx, Order{ClientID: client.ID, OrderNumber: "З-001"})
	if err != nil {
		t.Fatalf("Create order returned error: %v", err)
	}
	err = orders.InsertItems(ctx, order.ID, []OrderItem{
		{ClientSKU: "КРН-32", ClientName: "Кран 32", Quantity: 10, OriginalQuantity: 10},
	})
	if err != nil {
		t.Fatalf("InsertItems returned error: %v", err)
	}

	if err := clients.Delete(ctx, client.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := clients.Get(ctx, client.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected client gone, got %v", err)
	}

	left, err := mappings.ListByClient(ctx, client.ID, false)
	if err != nil {
		t.Fatalf("ListByClient returned error: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected mappings removed, got %d", len(left))
	}

	if _, err := orders.Get(ctx, order.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected order gone, got %v", err)
	}

	var items int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM order_items`).Scan(&items); err != nil {
		t.Fatalf("failed to count order items: %v", err)
	}
	if items != 0 {
		t.Fatalf("expected order items removed, got %d", items)
	}
}

func TestClientsDeleteNotFound(t *testing.T) {
	db := newTestDB(t)

	err := NewClientsRepo(db).Delete(context.Background(), "нет-такого")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
