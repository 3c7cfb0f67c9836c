package ai

import (
	"context"
	"errors"
	"testing"
)

func TestRouterFirstProviderWins(t *testing.T) {
	primary := &stubChat{answer: "ответ основного"}
	fallback := &stubChat{answer: "ответ запасного"}
	r := NewRouterClient(
		Provider{Name: "OpenRouter", Client: primary},
		Provider{Name: "Groq", Client: fallback},
	)

	got, err := r.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "привет"}})
	if err != nil {
		t.Fatalf("ChatCompletion() ошибка: %v", err)
	}
	if got != "ответ основного" {
		t.Errorf("ответ = %q, ожидался основной провайдер", got)
	}
	if fallback.calls != 0 {
		t.Errorf("запасной вызван %d раз, ожидался 0", fallback.calls)
	}
}

func TestRouterFallsBack(t *testing.T) {
	primary := &stubChat{err: errors.New("rate limit exceeded (429)")}
	fallback := &stubChat{answer: "ответ запасного"}
	r := NewRouterClient(
		Provider{Name: "OpenRouter", Client: primary},
		Provider{Name: "Groq", Client: fallback},
	)

	got, err := r.ChatCompletion(context.Background(), nil)
	if err != nil {
		t.Fatalf("ChatCompletion() ошибка: %v", err)
	}
	if got != "ответ запасного" {
		t.Errorf("ответ = %q, ожидался запасной провайдер", got)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("вызовы = %d/%d, ожидались 1/1", primary.calls, fallback.calls)
	}
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouterClient(
		Provider{Name: "OpenRouter", Client: &stubChat{err: errors.New("quota exceeded")}},
		Provider{Name: "Groq", Client: &stubChat{err: errors.New("server error: 503")}},
	)

	if _, err := r.ChatCompletion(context.Background(), nil); err == nil {
		t.Error("ChatCompletion() = nil, ожидалась ошибка при отказе всех провайдеров")
	}
}

func TestRouterSkipsNilClients(t *testing.T) {
	fallback := &stubChat{answer: "ответ"}
	r := NewRouterClient(
		Provider{Name: "OpenRouter", Client: nil},
		Provider{Name: "Groq", Client: fallback},
	)

	got, err := r.ChatCompletion(context.Background(), nil)
	if err != nil || got != "ответ" {
		t.Errorf("ChatCompletion() = %q, %v, ожидался ответ запасного", got, err)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouterClient(Provider{Name: "пустой", Client: nil})
	if _, err := r.ChatCompletion(context.Background(), nil); err == nil {
		t.Error("ChatCompletion() = nil, ожидалась ошибка без провайдеров")
	}
}
