package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockCatalogRepo - мок репозитория каталога.
type MockCatalogRepo struct {
	mock.Mock
}

func (m *MockCatalogRepo) ListAll(ctx context.Context) ([]Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Product), args.Error(1)
}

func (m *MockCatalogRepo) GetByID(ctx context.Context, id string) (Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Product), args.Error(1)
}

// MockMappingRepo - мок репозитория клиентских маппингов.
type MockMappingRepo struct {
	mock.Mock
}

func (m *MockMappingRepo) ListVerified(ctx context.Context, clientID string) (map[string]Mapping, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]Mapping), args.Error(1)
}

func (m *MockMappingRepo) Upsert(ctx context.Context, mp Mapping) error {
	args := m.Called(ctx, mp)
	return args.Error(0)
}

// MockLLMMatcher - мок LLM-матчера.
type MockLLMMatcher struct {
	mock.Mock
}

func (m *MockLLMMatcher) Match(ctx context.Context, query string, candidates []Product) (*Suggestion, error) {
	args := m.Called(ctx, query, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Suggestion), args.Error(1)
}

type ServiceTestSuite struct {
	suite.Suite
	catalog  *MockCatalogRepo
	mappings *MockMappingRepo
	service  *Service
	products []Product
}

func (s *ServiceTestSuite) SetupTest() {
	s.catalog = new(MockCatalogRepo)
	s.mappings = new(MockMappingRepo)
	s.products = []Product{
		{ID: "p1", SKU: "202051110R", Name: "Отвод ПП 110х87", Category: "Канализация внутренняя", PackQty: 20},
		{ID: "p2", SKU: "2020021102", Name: "Труба ПП канализационная 110×2000", Category: "Канализация внутренняя", PackQty: 10},
		{ID: "p3", SKU: "101999", Name: "Кран шаровой 32", Category: "Краны", PackQty: 5},
	}
	s.service = NewService(DefaultConfig(), s.catalog, s.mappings, nil, nil)
}

func (s *ServiceTestSuite) TestMatchBySkuWithoutClient() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)

	// Act
	res, err := s.service.MatchItem(context.Background(), MatchRequest{ClientSKU: "202-051-110r"})

	// Assert
	s.NoError(err)
	s.Equal("p1", res.ProductID)
	s.Equal(MatchExactSku, res.MatchType)
	s.Equal(float64(100), res.Confidence)
	s.False(res.NeedsReview)
	s.Equal(20, res.PackQty)
	// Без клиента маппинги не загружаются и ничего не сохраняется.
	s.mappings.AssertNumberOfCalls(s.T(), "ListVerified", 0)
	s.mappings.AssertNumberOfCalls(s.T(), "Upsert", 0)
	s.catalog.AssertExpectations(s.T())
}

func (s *ServiceTestSuite) TestMatchByNameAutoSavesMapping() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)
	s.mappings.On("ListVerified", mock.Anything, "c1").Return(map[string]Mapping{}, nil)
	s.mappings.On("Upsert", mock.Anything, mock.MatchedBy(func(m Mapping) bool {
		return m.ClientID == "c1" &&
			m.ClientSKU == "ТР-001" &&
			m.ProductID == "p2" &&
			m.Confidence == 95 &&
			!m.Verified
	})).Return(nil)

	req := MatchRequest{
		ClientID:   "c1",
		ClientSKU:  "ТР-001",
		ClientName: "Труба ПП канализационная 110×2000",
	}

	// Act
	res, err := s.service.MatchItem(context.Background(), req)

	// Assert
	s.NoError(err)
	s.Equal("p2", res.ProductID)
	s.Equal(MatchExactName, res.MatchType)
	s.Equal(float64(95), res.Confidence)

	// Автосохранение сбрасывает кэш маппингов: повторный запрос
	// перечитывает их из репозитория.
	_, err = s.service.MatchItem(context.Background(), req)
	s.NoError(err)
	s.mappings.AssertNumberOfCalls(s.T(), "ListVerified", 2)
	s.mappings.AssertExpectations(s.T())
}

func (s *ServiceTestSuite) TestCachedMappingUsed() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)
	s.mappings.On("ListVerified", mock.Anything, "c1").Return(map[string]Mapping{
		"КАСТОМ110": {ClientID: "c1", ClientSKU: "кастом-110", ProductID: "p3", Verified: true},
	}, nil)
	s.mappings.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	// Act
	res, err := s.service.MatchItem(context.Background(), MatchRequest{ClientID: "c1", ClientSKU: "кастом-110"})

	// Assert
	s.NoError(err)
	s.Equal("p3", res.ProductID)
	s.Equal(MatchCachedMapping, res.MatchType)
	s.Equal(float64(100), res.Confidence)
	s.Equal(5, res.PackQty)
}

func (s *ServiceTestSuite) TestSwappedColumnsHeuristic() {
	// Arrange: название попало в колонку артикула.
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)

	// Act
	res, err := s.service.MatchItem(context.Background(), MatchRequest{ClientSKU: "Труба ПП канализационная 110×2000"})

	// Assert
	s.NoError(err)
	s.Equal("p2", res.ProductID)
	s.Equal(MatchExactName, res.MatchType)
	// После переноса строки в название артикула не остается,
	// автосохранять нечего.
	s.mappings.AssertNumberOfCalls(s.T(), "Upsert", 0)
}

func (s *ServiceTestSuite) TestEmptyRequestShortCircuits() {
	// Act
	res, err := s.service.MatchItem(context.Background(), MatchRequest{ClientID: "c1"})

	// Assert
	s.NoError(err)
	s.Equal(MatchNotFound, res.MatchType)
	s.Equal(float64(0), res.Confidence)
	s.True(res.NeedsReview)
	s.Equal(1, res.PackQty)
	// До каталога и маппингов дело не доходит.
	s.catalog.AssertNumberOfCalls(s.T(), "ListAll", 0)
	s.mappings.AssertNumberOfCalls(s.T(), "ListVerified", 0)
}

func (s *ServiceTestSuite) TestCatalogErrorPropagatesAndRetries() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(nil, errors.New("база недоступна")).Once()
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil).Once()

	// Act
	_, err := s.service.MatchItem(context.Background(), MatchRequest{ClientSKU: "202051110R"})

	// Assert
	s.ErrorIs(err, ErrCatalogUnavailable)

	// Ошибка не кэшируется, следующий вызов загружает каталог заново.
	res, err := s.service.MatchItem(context.Background(), MatchRequest{ClientSKU: "202051110R"})
	s.NoError(err)
	s.Equal("p1", res.ProductID)
	s.catalog.AssertNumberOfCalls(s.T(), "ListAll", 2)
}

func (s *ServiceTestSuite) TestMappingsErrorNotCached() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)
	s.mappings.On("ListVerified", mock.Anything, "c1").Return(nil, errors.New("sql: соединение закрыто")).Once()
	s.mappings.On("ListVerified", mock.Anything, "c1").Return(map[string]Mapping{
		"КАСТОМ110": {ClientID: "c1", ClientSKU: "кастом-110", ProductID: "p3", Verified: true},
	}, nil).Once()
	s.mappings.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	req := MatchRequest{ClientID: "c1", ClientSKU: "кастом-110"}

	// Act: при недоступных маппингах запрос не падает, а идет дальше
	// по каскаду и заканчивается not_found.
	res, err := s.service.MatchItem(context.Background(), req)

	// Assert
	s.NoError(err)
	s.Equal(MatchNotFound, res.MatchType)

	// Сбой не запомнился: повторный вызов перечитывает маппинги.
	res, err = s.service.MatchItem(context.Background(), req)
	s.NoError(err)
	s.Equal(MatchCachedMapping, res.MatchType)
	s.Equal("p3", res.ProductID)
	s.mappings.AssertNumberOfCalls(s.T(), "ListVerified", 2)
}

func (s *ServiceTestSuite) TestMatchOrderItems() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)
	s.mappings.On("ListVerified", mock.Anything, "c1").Return(map[string]Mapping{}, nil)

	items := []OrderItem{
		{ClientSKU: "202051110R", Qty: 5},
		{ClientName: "неведомая штуковина", Qty: 1},
	}

	// Act
	results, err := s.service.MatchOrderItems(context.Background(), "c1", items, false)

	// Assert
	s.NoError(err)
	s.Len(results, 2)

	s.Equal("p1", results[0].Result.ProductID)
	s.Equal(MatchExactSku, results[0].Result.MatchType)
	s.Equal(float64(5), results[0].Item.Qty)
	s.False(results[0].AutoSaved)

	s.Equal(MatchNotFound, results[1].Result.MatchType)
	s.True(results[1].Result.NeedsReview)
	s.Equal(1, results[1].Result.PackQty)

	// autoSave выключен: ничего не пишется.
	s.mappings.AssertNumberOfCalls(s.T(), "Upsert", 0)
}

func (s *ServiceTestSuite) TestConcurrentCatalogLoad() {
	// Arrange: единственная медленная загрузка каталога.
	s.catalog.On("ListAll", mock.Anything).Run(func(mock.Arguments) {
		time.Sleep(30 * time.Millisecond)
	}).Return(s.products, nil).Once()

	const workers = 8
	errs := make([]error, workers)
	gotIDs := make([]string, workers)

	// Act
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.service.MatchItem(context.Background(), MatchRequest{ClientSKU: "202051110R"})
			errs[i] = err
			gotIDs[i] = res.ProductID
		}(i)
	}
	wg.Wait()

	// Assert
	for i := 0; i < workers; i++ {
		s.NoError(errs[i])
		s.Equal("p1", gotIDs[i])
	}
	s.catalog.AssertNumberOfCalls(s.T(), "ListAll", 1)
}

func (s *ServiceTestSuite) TestAutoSaveFailureKeepsResult() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)
	s.mappings.On("ListVerified", mock.Anything, "c1").Return(map[string]Mapping{}, nil)
	s.mappings.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("нарушение ограничения"))

	req := MatchRequest{ClientID: "c1", ClientSKU: "202051110R"}

	// Act
	res, err := s.service.MatchItem(context.Background(), req)

	// Assert: сбой записи не портит результат сопоставления.
	s.NoError(err)
	s.Equal("p1", res.ProductID)
	s.Equal(MatchExactSku, res.MatchType)

	// Кэш маппингов не сбрасывался: повторный запрос его переиспользует.
	_, err = s.service.MatchItem(context.Background(), req)
	s.NoError(err)
	s.mappings.AssertNumberOfCalls(s.T(), "ListVerified", 1)
}

func (s *ServiceTestSuite) TestStatsAccumulation() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)

	// Act
	_, err := s.service.MatchItem(context.Background(), MatchRequest{ClientSKU: "202051110R"})
	s.NoError(err)
	_, err = s.service.MatchItem(context.Background(), MatchRequest{ClientName: "неведомая штуковина"})
	s.NoError(err)

	// Assert
	stats := s.service.GetStats()
	s.Equal(int64(2), stats.Total)
	s.Equal(int64(1), stats.ByType[MatchExactSku])
	s.Equal(int64(1), stats.ByType[MatchNotFound])
	s.InDelta(50, stats.AvgConfidence, 0.001)
	s.InDelta(0.5, stats.SuccessRate, 0.001)

	s.service.ResetStats()
	s.Equal(int64(0), s.service.GetStats().Total)
}

func (s *ServiceTestSuite) TestClearCacheReloadsCatalog() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)

	// Act
	_, err := s.service.MatchItem(context.Background(), MatchRequest{ClientSKU: "202051110R"})
	s.NoError(err)
	s.service.ClearCache()
	_, err = s.service.MatchItem(context.Background(), MatchRequest{ClientSKU: "202051110R"})
	s.NoError(err)

	// Assert
	s.catalog.AssertNumberOfCalls(s.T(), "ListAll", 2)
}

func (s *ServiceTestSuite) TestSaveMappingInvalidatesCache() {
	// Arrange
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)
	s.mappings.On("ListVerified", mock.Anything, "c1").Return(map[string]Mapping{}, nil).Once()
	s.mappings.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	s.mappings.On("ListVerified", mock.Anything, "c1").Return(map[string]Mapping{
		"КАСТОМ110": {ClientID: "c1", ClientSKU: "кастом-110", ProductID: "p3", Verified: true},
	}, nil).Once()

	req := MatchRequest{ClientID: "c1", ClientSKU: "кастом-110"}

	// Act: до сохранения маппинга артикул не находится.
	res, err := s.service.MatchItem(context.Background(), req)
	s.NoError(err)
	s.Equal(MatchNotFound, res.MatchType)

	err = s.service.SaveMapping(context.Background(), Mapping{
		ClientID:  "c1",
		ClientSKU: "кастом-110",
		ProductID: "p3",
		Verified:  true,
	})
	s.NoError(err)

	// Assert: после сохранения тот же запрос попадает в маппинг.
	res, err = s.service.MatchItem(context.Background(), req)
	s.NoError(err)
	s.Equal(MatchCachedMapping, res.MatchType)
	s.Equal("p3", res.ProductID)
}

func (s *ServiceTestSuite) TestLLMFallback() {
	// Arrange
	llm := new(MockLLMMatcher)
	llm.On("Match", mock.Anything, "изделие сантехническое литое", mock.Anything).
		Return(&Suggestion{SKU: "101999", Name: "Кран шаровой 32", Confidence: 88}, nil)
	s.catalog.On("ListAll", mock.Anything).Return(s.products, nil)
	service := NewService(DefaultConfig(), s.catalog, s.mappings, nil, llm)

	// Act
	res, err := service.MatchItem(context.Background(), MatchRequest{ClientName: "изделие сантехническое литое"})

	// Assert
	s.NoError(err)
	s.Equal("p3", res.ProductID)
	s.Equal(MatchLLM, res.MatchType)
	s.Equal(float64(88), res.Confidence)
	s.False(res.NeedsReview)
	// LLM-совпадения не автосохраняются.
	s.mappings.AssertNumberOfCalls(s.T(), "Upsert", 0)
	llm.AssertExpectations(s.T())
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
