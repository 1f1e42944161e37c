package dedup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"talent-mirror/internal/model"
	"talent-mirror/internal/storage"
)

type stubLedger struct {
	records map[string]model.DocumentRecord
	err     error
}

func (s *stubLedger) FindDocument(ctx context.Context, ownerID string, kind model.DocumentKind, hash string) (*model.DocumentRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[ownerID+"|"+string(kind)+"|"+hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

func TestHashContentIsStable(t *testing.T) {
	t.Parallel()

	a, err := HashContent(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("HashContent error: %v", err)
	}
	b, _ := HashContent(strings.NewReader("hello"))
	c, _ := HashContent(strings.NewReader("hello!"))
	if a != b {
		t.Fatalf("expected identical hashes, got %s and %s", a, b)
	}
	if a == c {
		t.Fatalf("expected different hashes for different content")
	}
	if a != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("unexpected sha256 %s", a)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	ledger := &stubLedger{records: map[string]model.DocumentRecord{
		"u1|cv|h1": {OwnerID: "u1", Kind: model.DocumentCV, ContentHash: "h1", DocumentID: "cv-1", RemoteHash: "r1", Response: []byte(`{"a":1}`)},
	}}
	gate := NewGate(ledger, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     Query
		want      Verdict
		wantPrior bool
	}{
		{name: "unseen", query: Query{OwnerID: "u1", Kind: model.DocumentCV, ContentHash: "h2"}, want: NewDocument},
		{name: "seen locally", query: Query{OwnerID: "u1", Kind: model.DocumentCV, ContentHash: "h1"}, want: DuplicateDocument, wantPrior: true},
		{name: "other owner", query: Query{OwnerID: "u2", Kind: model.DocumentCV, ContentHash: "h1"}, want: NewDocument},
		{name: "other kind", query: Query{OwnerID: "u1", Kind: model.DocumentJob, ContentHash: "h1"}, want: NewDocument},
		{name: "upstream says duplicate", query: Query{OwnerID: "u2", Kind: model.DocumentCV, ContentHash: "h9", RemoteDuplicate: true}, want: DuplicateDocument},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, prior, err := gate.Classify(ctx, tt.query)
			if err != nil {
				t.Fatalf("Classify error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("verdict = %v, want %v", got, tt.want)
			}
			if (prior != nil) != tt.wantPrior {
				t.Fatalf("prior = %+v, wantPrior %v", prior, tt.wantPrior)
			}
			if prior != nil && (string(prior.Response) != `{"a":1}` || prior.DocumentID != "cv-1") {
				t.Fatalf("unexpected prior %+v", prior)
			}
		})
	}
}

func TestClassifyLedgerError(t *testing.T) {
	t.Parallel()

	gate := NewGate(&stubLedger{err: errors.New("db down")}, nil)
	if _, _, err := gate.Classify(context.Background(), Query{OwnerID: "u1", Kind: model.DocumentCV, ContentHash: "h"}); err == nil {
		t.Fatalf("expected ledger error")
	}
}
