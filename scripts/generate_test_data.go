package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"matchserver/database"
	"matchserver/matching"
)

// Генератор демо-данных: каталог сантехники, клиенты и "грязные" файлы
// заказов для ручной проверки сопоставления.
//
//	go run scripts/generate_test_data.go
func main() {
	// Инициализируем gofakeit
	gofakeit.Seed(0)

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = filepath.Join("data", "matchserver.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	db, err := database.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Каталог поставщика
	catalog := generateCatalog()
	products := database.NewProductsRepo(db)
	uploaded, err := products.BulkUpsert(ctx, catalog)
	if err != nil {
		log.Fatalf("Failed to upsert catalog: %v", err)
	}
	fmt.Printf("Generated %d catalog products in %s\n", uploaded, dbPath)

	// Демо-клиенты
	clients := database.NewClientsRepo(db)
	demoClients := []database.Client{
		{Name: "ООО СантехМонтаж", Contact: "zakaz@santehmontazh.ru"},
		{Name: "ИП Иванов А.В.", Contact: "+7 903 " + gofakeit.Numerify("###-##-##")},
		{Name: "СтройБаза №7", Contact: gofakeit.Email()},
	}
	for i, c := range demoClients {
		created, err := clients.Create(ctx, c)
		if err != nil {
			log.Fatalf("Failed to create client %q: %v", c.Name, err)
		}
		demoClients[i] = created
		fmt.Printf("Client %s: %s\n", created.ID, created.Name)
	}

	// Грязные файлы заказов для ручной загрузки через API
	demoDir := filepath.Join("data", "demo")
	if err := os.MkdirAll(demoDir, 0755); err != nil {
		log.Fatalf("Failed to create demo directory: %v", err)
	}

	for i, c := range demoClients {
		filename := filepath.Join(demoDir, fmt.Sprintf("order_demo_%d.csv", i+1))
		lines := generateNoisyOrder(catalog, 15+gofakeit.Number(0, 10))
		if err := os.WriteFile(filename, []byte(lines), 0644); err != nil {
			log.Fatalf("Failed to write order file %s: %v", filename, err)
		}
		fmt.Printf("Order file for %s: %s\n", c.Name, filename)
	}

	fmt.Println("\nDone. Start the server and upload an order file:")
	fmt.Printf("  curl -F file=@%s -F client_id=%s http://localhost:9999/api/orders/upload\n",
		filepath.Join(demoDir, "order_demo_1.csv"), demoClients[0].ID)
}

// generateCatalog собирает демо-каталог по товарным группам поставщика.
// Префиксы артикулов несут смысл: 202 серая внутренняя канализация,
// 403 малошумная белая, 303 наружная, 501 PERT, 704 компрессионные ПНД.
func generateCatalog() []matching.Product {
	var catalog []matching.Product

	add := func(prefix string, typeCode, variant, size int, name, category string, packs []int, minPrice, maxPrice float64) {
		catalog = append(catalog, matching.Product{
			SKU:      fmt.Sprintf("%s%02d%d%03d%s", prefix, typeCode, variant, size, skuSuffix()),
			Name:     name,
			Category: category,
			Price:    gofakeit.Price(minPrice, maxPrice),
			PackQty:  packs[gofakeit.Number(0, len(packs)-1)],
		})
	}

	// Внутренняя канализация, серая и малошумная белая
	interior := []struct {
		prefix   string
		category string
		line     string
		color    string
	}{
		{"202", "Канализация внутренняя", "канализационн", "серый"},
		{"403", "Канализация малошумная", "малошумн", "Prestige белый"},
	}
	diameters := []int{32, 40, 50, 110}
	lengths := []int{150, 250, 500, 750, 1000, 1500, 2000, 3000}
	angles := []int{15, 30, 45, 67, 87}

	for _, fam := range interior {
		for _, d := range diameters {
			for li, l := range lengths {
				add(fam.prefix, 1, li, d,
					fmt.Sprintf("Труба ПП %sая %dх%d %s", fam.line, d, l, feminine(fam.color)),
					fam.category, []int{1, 10}, 40, 520)
			}
			for ai, a := range angles {
				add(fam.prefix, 5, ai, d,
					fmt.Sprintf("Отвод %sый %d/%d %s", fam.line, d, a, fam.color),
					fam.category, []int{10, 20, 25, 50}, 15, 140)
			}
			add(fam.prefix, 12, 0, d,
				fmt.Sprintf("Муфта %sая %d %s", fam.line, d, feminine(fam.color)),
				fam.category, []int{10, 25, 50}, 12, 95)
			add(fam.prefix, 30, 0, d,
				fmt.Sprintf("Заглушка %sая %d %s", fam.line, d, feminine(fam.color)),
				fam.category, []int{10, 25, 50, 100}, 8, 60)
		}
		for _, d := range []int{50, 110} {
			add(fam.prefix, 21, 0, d,
				fmt.Sprintf("Ревизия %sая %d %s", fam.line, d, feminine(fam.color)),
				fam.category, []int{10, 20}, 45, 210)
		}
		// Тройники и редукции на переходные размеры
		for pi, pair := range [][2]int{{40, 40}, {50, 40}, {50, 50}, {110, 50}, {110, 110}} {
			for ai, a := range []int{45, 87} {
				add(fam.prefix, 13+ai, pi, pair[0],
					fmt.Sprintf("Тройник %sый %dх%d/%d %s", fam.line, pair[0], pair[1], a, fam.color),
					fam.category, []int{10, 20, 25}, 28, 190)
			}
		}
		for pi, pair := range [][2]int{{50, 32}, {50, 40}, {110, 50}} {
			add(fam.prefix, 40, pi, pair[0],
				fmt.Sprintf("Редукция %sая %dх%d %s", fam.line, pair[0], pair[1], feminine(fam.color)),
				fam.category, []int{10, 25, 50}, 14, 85)
			add(fam.prefix, 35, pi, pair[0],
				fmt.Sprintf("Крестовина %sая %dх%dх%d/87 %s", fam.line, pair[0], pair[0], pair[1], feminine(fam.color)),
				fam.category, []int{5, 10}, 60, 320)
		}
	}

	// Наружная канализация, рыжая
	for _, d := range []int{110, 160, 200} {
		for li, l := range []int{1000, 2000, 3000, 6000} {
			add("303", 1, li, d,
				fmt.Sprintf("Труба НПВХ наружная %dх%d рыжая", d, l),
				"Канализация наружная", []int{1, 10}, 180, 2400)
		}
		add("303", 12, 0, d,
			fmt.Sprintf("Муфта наружная %d рыжая", d),
			"Канализация наружная", []int{5, 10, 25}, 55, 340)
		for ai, a := range []int{15, 30, 45, 87} {
			add("303", 5, ai, d,
				fmt.Sprintf("Отвод наружный %d/%d рыжий", d, a),
				"Канализация наружная", []int{5, 10, 25}, 70, 420)
		}
		add("303", 13, 0, d,
			fmt.Sprintf("Тройник наружный %dх%d/45 рыжий", d, d),
			"Канализация наружная", []int{5, 10}, 110, 560)
	}

	// Трубы PERT для теплого пола
	for vi, size := range []string{"16х2.0", "20х2.0"} {
		for bi, b := range []int{100, 200, 600} {
			add("501", 1, vi*3+bi, 16+vi*4,
				fmt.Sprintf("Труба PERT SDR 7.4 %s бухта %d м", size, b),
				"Трубы PERT", []int{1}, 2800, 16800)
		}
	}

	// Компрессионные фитинги ПНД
	pndTypes := []struct {
		code int
		name string
	}{
		{12, "Муфта компрессионная %d ПНД"},
		{5, "Отвод компрессионный %d ПНД"},
		{13, "Тройник компрессионный %d ПНД"},
		{30, "Заглушка компрессионная %d ПНД"},
		{45, "Кран шаровой компрессионный %d ПНД"},
		{50, "Седелка ремонтная %d ПНД"},
	}
	pndDiameters := []int{20, 25, 32, 40, 50, 63}
	threads := []string{`1/2"`, `3/4"`, `1"`, `1 1/4"`, `1 1/2"`, `2"`}
	for _, d := range pndDiameters {
		for _, t := range pndTypes {
			add("704", t.code, 0, d, fmt.Sprintf(t.name, d),
				"Компрессионные фитинги ПНД", []int{10, 20, 30, 50, 100}, 25, 640)
		}
	}
	// Редукционные муфты и переходы на резьбу ВР/НР
	for pi, pair := range [][2]int{{25, 20}, {32, 20}, {32, 25}, {40, 32}, {50, 40}, {63, 50}} {
		add("704", 14, pi, pair[0],
			fmt.Sprintf("Муфта компрессионная редукционная %dх%d ПНД", pair[0], pair[1]),
			"Компрессионные фитинги ПНД", []int{10, 20, 40}, 55, 420)
	}
	for di, d := range pndDiameters {
		for _, side := range []string{"ВР", "НР"} {
			variant := 1
			if side == "НР" {
				variant = 2
			}
			add("704", 16, variant, d,
				fmt.Sprintf("Муфта компрессионная %s %dх%s ПНД", side, d, threads[di]),
				"Компрессионные фитинги ПНД", []int{10, 20, 50}, 45, 380)
			add("704", 46, variant, d,
				fmt.Sprintf("Кран шаровой компрессионный %s %dх%s ПНД", side, d, threads[di]),
				"Компрессионные фитинги ПНД", []int{5, 10, 25}, 180, 960)
		}
	}

	return catalog
}

// skuSuffix возвращает буквенный хвост артикула, как в прайсах поставщика
func skuSuffix() string {
	return gofakeit.RandomString([]string{"", "", "R", "K"})
}

// feminine согласует цвет с женским родом названия
func feminine(color string) string {
	switch color {
	case "серый":
		return "серая"
	case "Prestige белый":
		return "Prestige белая"
	default:
		return color
	}
}

// generateNoisyOrder строит CSV заказа в том виде, в каком его присылают
// снабженцы: сокращения, опечатки, перепутанные форматы размеров, часть
// позиций вовсе без артикула.
func generateNoisyOrder(catalog []matching.Product, items int) string {
	var sb strings.Builder
	sb.WriteString("Артикул;Наименование;Кол-во\n")

	for i := 0; i < items; i++ {
		p := catalog[gofakeit.Number(0, len(catalog)-1)]

		sku := p.SKU
		name := noisyName(p.Name)
		qty := gofakeit.Number(1, 40)

		switch gofakeit.Number(0, 5) {
		case 0:
			// Без артикула, только словесное описание
			sku = ""
		case 1:
			// Артикул с точками-разделителями
			sku = dottedSKU(p.SKU)
		case 2:
			// Колонки перепутаны местами
			sku, name = name, sku
		}

		sb.WriteString(fmt.Sprintf("%s;%s;%d\n", sku, name, qty))
	}

	return sb.String()
}

// noisyName портит название товара типичными для заявок способами
func noisyName(name string) string {
	replacements := [][2]string{
		{"канализационная", "кан."},
		{"канализационный", "кан."},
		{"компрессионная", "компрес."},
		{"компрессионный", "компрес."},
		{"Отвод", "Колено"},
		{"наружный", "наружний"},
		{"х", "*"},
	}
	// Одна-две порчи на позицию, чтобы запрос оставался узнаваемым
	for i := 0; i < gofakeit.Number(1, 2); i++ {
		r := replacements[gofakeit.Number(0, len(replacements)-1)]
		name = strings.Replace(name, r[0], r[1], 1)
	}
	if gofakeit.Bool() {
		name = strings.ToLower(name)
	}
	return name
}

// dottedSKU переписывает артикул через точки: 202051110 -> 202.051.110
func dottedSKU(sku string) string {
	if len(sku) < 9 {
		return sku
	}
	return sku[:3] + "." + sku[3:6] + "." + sku[6:]
}
