package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"talent-mirror/internal/model"
	"talent-mirror/internal/storage"

	"go.uber.org/zap"
)

// Verdict 文档去重结论。
type Verdict int

const (
	NewDocument Verdict = iota + 1
	DuplicateDocument
)

func (v Verdict) String() string {
	switch v {
	case NewDocument:
		return "new"
	case DuplicateDocument:
		return "duplicate"
	default:
		return "unknown"
	}
}

// HashContent 返回内容的十六进制 SHA-256。
func HashContent(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Ledger 查询已处理文档。
type Ledger interface {
	FindDocument(ctx context.Context, ownerID string, kind model.DocumentKind, contentHash string) (*model.DocumentRecord, error)
}

// Query 一次去重判断的输入。
// RemoteDuplicate 为上游返回的 is_duplicate，原样信任。
type Query struct {
	OwnerID         string
	Kind            model.DocumentKind
	ContentHash     string
	RemoteDuplicate bool
}

// Prior 之前处理同一文档得到的结果。
type Prior struct {
	DocumentID string
	RemoteHash string
	Response   json.RawMessage
}

// Gate 判断上传文档是否已处理过。重复是结果而不是错误。
type Gate struct {
	ledger Ledger
	log    *zap.Logger
}

// NewGate 创建 Gate。
func NewGate(ledger Ledger, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{ledger: ledger, log: log}
}

// Classify 返回去重结论；台账中有记录时一并返回之前的解析结果。
// 上游判定重复但本地没有记录时 Prior 为 nil。
func (g *Gate) Classify(ctx context.Context, q Query) (Verdict, *Prior, error) {
	var prior *Prior
	if g.ledger != nil && q.ContentHash != "" {
		rec, err := g.ledger.FindDocument(ctx, q.OwnerID, q.Kind, q.ContentHash)
		switch {
		case err == nil:
			prior = &Prior{
				DocumentID: rec.DocumentID,
				RemoteHash: rec.RemoteHash,
				Response:   json.RawMessage(rec.Response),
			}
		case errors.Is(err, storage.ErrNotFound):
		default:
			return 0, nil, fmt.Errorf("lookup document ledger: %w", err)
		}
	}

	if prior != nil || q.RemoteDuplicate {
		g.log.Debug("duplicate document",
			zap.String("owner_id", q.OwnerID),
			zap.String("kind", string(q.Kind)),
			zap.Bool("remote", q.RemoteDuplicate),
			zap.Bool("local", prior != nil))
		return DuplicateDocument, prior, nil
	}
	return NewDocument, nil, nil
}
