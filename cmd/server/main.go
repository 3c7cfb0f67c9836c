// @title Matchserver API
// @version 1.0
// @description Сервис сопоставления заказов B2B с каталогом поставщика сантехники. Каскад сопоставления: точный артикул, точное название, выученные маппинги, нечеткий поиск, семантика и LLM.

// @contact.name API Support
// @contact.email support@example.com

// @host localhost:9999
// @BasePath /api
// @schemes http https

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"matchserver/ai"
	"matchserver/database"
	"matchserver/embeddings"
	"matchserver/internal/config"
	"matchserver/matching"
	"matchserver/server"
)

func main() {
	log.Println("Запуск сервиса сопоставления заказов...")

	// Загружаем конфигурацию
	log.Println("[1/5] Загрузка конфигурации...")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("✗ Ошибка загрузки конфигурации: %v", err)
	}
	log.Printf("✓ Конфигурация загружена. Порт: %s", cfg.Port)

	// Создаем базу данных
	log.Println("[2/5] Инициализация базы данных...")
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("✗ Не удалось создать директорию БД %s: %v", dir, err)
		}
	}
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("✗ Не удалось инициализировать базу данных по пути %s: %v", cfg.DatabasePath, err)
	}
	defer db.Close()
	log.Printf("✓ БД инициализирована: %s", cfg.DatabasePath)

	products := database.NewProductsRepo(db)
	clients := database.NewClientsRepo(db)
	mappings := database.NewMappingsRepo(db)
	orders := database.NewOrdersRepo(db)

	// Семантический индекс каталога
	log.Println("[3/5] Подготовка семантического индекса...")
	var index *embeddings.Index
	var matcherIndex matching.EmbeddingIndex
	if cfg.EmbeddingsAPIKey != "" {
		encoder := embeddings.NewClient(cfg.EmbeddingsURL, cfg.EmbeddingsAPIKey, cfg.EmbeddingsModel, cfg.EmbeddingsTimeout)
		index = embeddings.NewIndex(encoder)
		matcherIndex = index

		// Построение индекса не задерживает старт сервера
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			catalog, err := products.ListAll(ctx)
			if err != nil {
				log.Printf("⚠ Семантический индекс не построен, каталог недоступен: %v", err)
				return
			}
			if err := index.Build(ctx, catalog); err != nil {
				log.Printf("⚠ Семантический индекс не построен: %v", err)
			}
		}()
	} else {
		log.Println("⚠ Ключ эмбеддингов не задан, семантический поиск отключен")
	}

	// LLM-подбор
	log.Println("[4/5] Подготовка LLM-подбора...")
	var llm matching.LLMMatcher
	if cfg.EnableMLMatching {
		var providers []ai.Provider
		if cfg.OpenRouterAPIKey != "" {
			providers = append(providers, ai.Provider{
				Name:   "openrouter",
				Client: ai.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.LLMModel, cfg.LLMTimeout),
			})
		}
		if cfg.GroqAPIKey != "" {
			providers = append(providers, ai.Provider{
				Name:   "groq",
				Client: ai.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel, cfg.LLMTimeout),
			})
		}
		llm = ai.NewMatcher(ai.NewRouterClient(providers...))
		log.Printf("✓ LLM-подбор включен: %d провайдеров", len(providers))
	} else {
		log.Println("LLM-подбор выключен")
	}

	matcher := matching.NewService(cfg.MatcherConfig(), products, mappings, matcherIndex, llm)

	// Создаем и запускаем сервер
	log.Println("[5/5] Запуск HTTP сервера...")
	srv := server.New(cfg, matcher, products, clients, mappings, orders, index)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("✗ Ошибка запуска сервера: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("✗ Ошибка при остановке сервера: %v", err)
	}
}
