package matching

import "sync"

// Stats - счетчики результатов сопоставления. Мутации сериализуются
// локом, чтение отдает снимок.
type Stats struct {
	mu              sync.Mutex
	byType          map[string]int64
	total           int64
	totalConfidence float64
}

// StatsSnapshot - моментальный снимок счетчиков.
type StatsSnapshot struct {
	Total         int64            `json:"total"`
	ByType        map[string]int64 `json:"by_type"`
	AvgConfidence float64          `json:"avg_confidence"`
	SuccessRate   float64          `json:"success_rate"`
}

// NewStats создает пустые счетчики.
func NewStats() *Stats {
	return &Stats{byType: make(map[string]int64)}
}

// Record учитывает один результат сопоставления.
func (s *Stats) Record(res MatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byType[res.MatchType]++
	s.total++
	s.totalConfidence += res.Confidence
}

// Snapshot возвращает копию счетчиков с производными метриками.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[string]int64, len(s.byType))
	for k, v := range s.byType {
		byType[k] = v
	}
	snap := StatsSnapshot{
		Total:  s.total,
		ByType: byType,
	}
	if s.total > 0 {
		snap.AvgConfidence = s.totalConfidence / float64(s.total)
		snap.SuccessRate = float64(s.total-s.byType[MatchNotFound]) / float64(s.total)
	}
	return snap
}

// Reset обнуляет счетчики.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byType = make(map[string]int64)
	s.total = 0
	s.totalConfidence = 0
}
