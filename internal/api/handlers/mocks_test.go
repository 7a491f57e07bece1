package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/filevault/internal/domain/model"
	"github.com/bigkaa/filevault/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockCatalogue struct {
	upsertFn     func(ctx context.Context, in service.FileInput) (*model.FileRecord, error)
	upsertManyFn func(ctx context.Context, inputs []service.FileInput) (int, int, error)
	getByIDFn    func(ctx context.Context, fileID string) (*model.FileRecord, error)
}

func (m *mockCatalogue) Upsert(ctx context.Context, in service.FileInput) (*model.FileRecord, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, in)
	}
	return &model.FileRecord{ID: in.ID, FileName: in.FileName}, nil
}

func (m *mockCatalogue) UpsertMany(ctx context.Context, inputs []service.FileInput) (int, int, error) {
	if m.upsertManyFn != nil {
		return m.upsertManyFn(ctx, inputs)
	}
	return len(inputs), 0, nil
}

func (m *mockCatalogue) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, fileID)
	}
	return nil, service.ErrNotFound
}

type mockSearcher struct {
	searchFn func(ctx context.Context, q service.Query) (*service.Result, error)
}

func (m *mockSearcher) Search(ctx context.Context, q service.Query) (*service.Result, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &service.Result{Phrase: q.Phrase, Items: []model.SearchHit{}}, nil
}

type mockDelivery struct {
	resultPageFn func(ctx context.Context, userID int64, q service.Query) (*service.ResultPage, error)
	redeemFn     func(ctx context.Context, token string) (*model.FileRecord, error)
}

func (m *mockDelivery) ResultPage(ctx context.Context, userID int64, q service.Query) (*service.ResultPage, error) {
	if m.resultPageFn != nil {
		return m.resultPageFn(ctx, userID, q)
	}
	return &service.ResultPage{Phrase: q.Phrase}, nil
}

func (m *mockDelivery) Redeem(ctx context.Context, token string) (*model.FileRecord, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, token)
	}
	return nil, service.ErrInvalidToken
}

type mockTokens struct {
	issueFn func(ctx context.Context, fileID string) (string, error)
}

func (m *mockTokens) Issue(ctx context.Context, fileID string) (string, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, fileID)
	}
	return "tok-" + fileID, nil
}

type mockPremium struct {
	grantFn  func(ctx context.Context, userID int64, days int) (time.Time, error)
	statusFn func(ctx context.Context, userID int64) (service.PremiumStatus, error)
}

func (m *mockPremium) GrantOrRenew(ctx context.Context, userID int64, days int) (time.Time, error) {
	if m.grantFn != nil {
		return m.grantFn(ctx, userID, days)
	}
	return time.Now().AddDate(0, 0, days), nil
}

func (m *mockPremium) Status(ctx context.Context, userID int64) (service.PremiumStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, userID)
	}
	return service.PremiumStatus{}, nil
}

// mockChecker — проверка готовности с фиксированным результатом.
type mockChecker struct {
	status, message string
}

func (m mockChecker) CheckReady() (string, string) { return m.status, m.message }

// handlerFixture — APIHandler на моках и chi-роутер с его маршрутами.
type handlerFixture struct {
	catalogue *mockCatalogue
	search    *mockSearcher
	delivery  *mockDelivery
	tokens    *mockTokens
	premium   *mockPremium
	router    http.Handler
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		catalogue: &mockCatalogue{},
		search:    &mockSearcher{},
		delivery:  &mockDelivery{},
		tokens:    &mockTokens{},
		premium:   &mockPremium{},
	}
	h := NewAPIHandler(
		NewHealthHandler(mockChecker{status: statusOK}, nil),
		f.catalogue, f.search, f.delivery, f.tokens, f.premium,
		discardLogger(),
	)

	r := chi.NewRouter()
	r.Post("/api/v1/files", h.UpsertFile)
	r.Post("/api/v1/files/batch", h.UpsertFilesBatch)
	r.Get("/api/v1/files/{file_id}", h.GetFile)
	r.Post("/api/v1/search", h.SearchFiles)
	r.Post("/api/v1/results", h.ResultPage)
	r.Post("/api/v1/tokens", h.IssueToken)
	r.Get("/api/v1/tokens/{token}", h.RedeemToken)
	r.Get("/api/v1/premium/{user_id}", h.GetPremium)
	r.Put("/api/v1/premium/{user_id}", h.GrantPremium)
	f.router = r
	return f
}
