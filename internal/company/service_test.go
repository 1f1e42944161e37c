package company

import (
	"context"
	"errors"
	"testing"
	"time"

	"talent-mirror/internal/apperr"
	"talent-mirror/internal/model"
)

type stubStore struct {
	calls int
	saved model.Company
	err   error
}

func (s *stubStore) UpsertCompany(ctx context.Context, company *model.Company) error {
	s.calls++
	s.saved = *company
	return s.err
}

func intPtr(v int) *int { return &v }

func newTestService(store Store) *Service {
	svc := NewService(store, Config{AllowedSizes: []string{"1-10", "11-50", "51-200"}})
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestServiceNormalizesAndSaves(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	svc := newTestService(store)

	got, err := svc.Save(context.Background(), Request{
		ID:          "c1",
		Description: "  We build things ",
		WebsiteURL:  "example.com/about",
		CompanySize: "11-50",
		Industry:    "null",
		FoundedYear: intPtr(2015),
	})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected store called once, got %d", store.calls)
	}
	if got.WebsiteURL == nil || *got.WebsiteURL != "https://example.com/about" {
		t.Fatalf("unexpected website %v", got.WebsiteURL)
	}
	if got.CompanyDescription == nil || *got.CompanyDescription != "We build things" {
		t.Fatalf("unexpected description %v", got.CompanyDescription)
	}
	if got.Industry != nil {
		t.Fatalf("sentinel industry must be stored as NULL, got %q", *got.Industry)
	}
}

func TestServiceRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	svc := newTestService(store)

	cases := []Request{
		{ID: ""},
		{ID: "c1", WebsiteURL: "ftp://example.com"},
		{ID: "c1", WebsiteURL: "https://"},
		{ID: "c1", CompanySize: "10000+"},
		{ID: "c1", FoundedYear: intPtr(2030)},
	}
	for i, req := range cases {
		if _, err := svc.Save(context.Background(), req); !apperr.IsCode(err, apperr.CodeValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if store.calls != 0 {
		t.Fatalf("store must not be called for invalid input")
	}
}

func TestServiceStoreFailure(t *testing.T) {
	t.Parallel()

	store := &stubStore{err: errors.New("db down")}
	svc := newTestService(store)
	if _, err := svc.Save(context.Background(), Request{ID: "c1"}); !apperr.IsCode(err, apperr.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
