package database

import (
	"context"
	"errors"
	"testing"

	"matchserver/matching"
)

func newTestOrder(t *testing.T, db *DB) (Order, matching.Product) {
	t.Helper()

	client := insertTestClient(t, db, "Тестовый клиент")
	p := insertTestProduct(t, db, "2020871100", "Отвод ПП 110х87°", 20)

	order, err := NewOrdersRepo(db).Create(context.Background(), Order{
		ClientID:     client.ID,
		OrderNumber:  "З-1024",
		OriginalFile: "заказ_июнь.xlsx",
	})
	if err != nil {
		t.Fatalf("Create order returned error: %v", err)
	}
	return order, p
}

func TestOrdersCreateDefaults(t *testing.T) {
	db := newTestDB(t)

	order, _ := newTestOrder(t, db)

	if order.Status != OrderStatusNew {
		t.Fatalf("expected status %q, got %q", OrderStatusNew, order.Status)
	}
	if order.Source != "upload" {
		t.Fatalf("expected source upload, got %q", order.Source)
	}
	if order.ProcessedAt != nil || order.ExportedAt != nil {
		t.Fatalf("expected empty processing timestamps: %+v", order)
	}
	if order.ItemCount != 0 || order.ReviewCount != 0 {
		t.Fatalf("expected zero counters on fresh order: %+v", order)
	}
}

func TestOrdersItemsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrdersRepo(db)
	ctx := context.Background()

	order, p := newTestOrder(t, db)

	items := []OrderItem{
		{
			ClientSKU:         "ОТВ-110",
			ClientName:        "Отвод серый 110х87",
			Quantity:          20,
			OriginalQuantity:  18,
			MappedProductID:   p.ID,
			MappingConfidence: 92,
			MappingType:       matching.MatchFuzzyName,
		},
		{
			ClientSKU:        "НЕИЗВ-1",
			ClientName:       "Изделие литое",
			Quantity:         5,
			OriginalQuantity: 5,
			NeedsReview:      true,
		},
	}
	if err := repo.InsertItems(ctx, order.ID, items); err != nil {
		t.Fatalf("InsertItems returned error: %v", err)
	}

	got, err := repo.ListItems(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListItems returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}

	first := got[0]
	if first.ClientSKU != "ОТВ-110" || first.Quantity != 20 || first.OriginalQuantity != 18 {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.ProductSKU != "2020871100" || first.ProductName != "Отвод ПП 110х87°" || first.PackQty != 20 {
		t.Fatalf("expected product fields from catalog join: %+v", first)
	}

	second := got[1]
	if second.MappedProductID != "" || second.ProductSKU != "" {
		t.Fatalf("expected unmapped item without product fields: %+v", second)
	}
	if !second.NeedsReview || second.Reviewed {
		t.Fatalf("expected second item pending review: %+v", second)
	}

	updated, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if updated.ItemCount != 2 || updated.ReviewCount != 1 {
		t.Fatalf("expected counters 2/1, got %d/%d", updated.ItemCount, updated.ReviewCount)
	}
}

func TestOrdersUpdateStatusSetsProcessedAt(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrdersRepo(db)
	ctx := context.Background()

	order, _ := newTestOrder(t, db)

	if err := repo.UpdateStatus(ctx, order.ID, OrderStatusNeedsReview); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != OrderStatusNeedsReview {
		t.Fatalf("expected status %q, got %q", OrderStatusNeedsReview, got.Status)
	}
	if got.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}

	firstProcessed := *got.ProcessedAt

	// Повторная смена статуса не переписывает время обработки.
	if err := repo.UpdateStatus(ctx, order.ID, OrderStatusConfirmed); err != nil {
		t.Fatalf("second UpdateStatus returned error: %v", err)
	}
	got, err = repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(firstProcessed) {
		t.Fatalf("expected processed_at preserved, was %v became %v", firstProcessed, got.ProcessedAt)
	}

	if err := repo.UpdateStatus(ctx, "нет-такого", OrderStatusProcessed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrdersMarkExported(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrdersRepo(db)
	ctx := context.Background()

	order, _ := newTestOrder(t, db)

	if err := repo.MarkExported(ctx, order.ID); err != nil {
		t.Fatalf("MarkExported returned error: %v", err)
	}

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != OrderStatusExported {
		t.Fatalf("expected exported status, got %q", got.Status)
	}
	if got.ExportedAt == nil {
		t.Fatal("expected exported_at to be set")
	}
}

func TestOrdersUpdateItemMapping(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrdersRepo(db)
	ctx := context.Background()

	order, p := newTestOrder(t, db)

	err := repo.InsertItems(ctx, order.ID, []OrderItem{
		{ClientSKU: "НЕИЗВ-1", ClientName: "Изделие литое", Quantity: 5, NeedsReview: true},
	})
	if err != nil {
		t.Fatalf("InsertItems returned error: %v", err)
	}

	items, err := repo.ListItems(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListItems returned error: %v", err)
	}
	itemID := items[0].ID

	if err := repo.UpdateItemMapping(ctx, itemID, p.ID, 100, "manual"); err != nil {
		t.Fatalf("UpdateItemMapping returned error: %v", err)
	}

	item, err := repo.GetItem(ctx, itemID)
	if err != nil {
		t.Fatalf("GetItem returned error: %v", err)
	}
	if item.MappedProductID != p.ID || item.MappingConfidence != 100 || item.MappingType != "manual" {
		t.Fatalf("mapping not applied: %+v", item)
	}
	if item.NeedsReview || !item.Reviewed {
		t.Fatalf("expected review resolved: %+v", item)
	}
	if item.ProductSKU != p.SKU {
		t.Fatalf("expected product join after remap: %+v", item)
	}

	if err := repo.UpdateItemMapping(ctx, "нет-такой", p.ID, 100, "manual"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrdersMarkReviewed(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrdersRepo(db)
	ctx := context.Background()

	order, p := newTestOrder(t, db)

	err := repo.InsertItems(ctx, order.ID, []OrderItem{
		{ClientSKU: "А-1", Quantity: 1, MappedProductID: p.ID, MappingConfidence: 80, NeedsReview: true},
		{ClientSKU: "А-2", Quantity: 2, NeedsReview: true},
	})
	if err != nil {
		t.Fatalf("InsertItems returned error: %v", err)
	}

	if err := repo.MarkReviewed(ctx, order.ID); err != nil {
		t.Fatalf("MarkReviewed returned error: %v", err)
	}

	items, err := repo.ListItems(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListItems returned error: %v", err)
	}
	for _, item := range items {
		if item.NeedsReview || !item.Reviewed {
			t.Fatalf("expected all items reviewed: %+v", item)
		}
	}

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.ReviewCount != 0 {
		t.Fatalf("expected review counter drained, got %d", got.ReviewCount)
	}
}

func TestOrdersListFiltersByClient(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrdersRepo(db)
	ctx := context.Background()

	clientA := insertTestClient(t, db, "Клиент А")
	clientB := insertTestClient(t, db, "Клиент Б")

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, Order{ClientID: clientA.ID}); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}
	if _, err := repo.Create(ctx, Order{ClientID: clientB.ID}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	all, err := repo.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(all))
	}

	onlyA, err := repo.List(ctx, clientA.ID, 0)
	if err != nil {
		t.Fatalf("List by client returned error: %v", err)
	}
	if len(onlyA) != 3 {
		t.Fatalf("expected 3 orders for client A, got %d", len(onlyA))
	}

	limited, err := repo.List(ctx, clientA.ID, 2)
	if err != nil {
		t.Fatalf("List with limit returned error: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit applied, got %d", len(limited))
	}
}
