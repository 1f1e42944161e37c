package model

import "time"

// DocumentKind 上传文档类型。
type DocumentKind string

const (
	DocumentCV  DocumentKind = "cv"
	DocumentJob DocumentKind = "job"
)

// DocumentRecord 去重台账：同一 owner 的同一内容哈希只解析一次，
// Response 按原始字节保存首次解析的响应，重复上传时原样返回。
type DocumentRecord struct {
	ID          uint         `gorm:"column:id;primaryKey" json:"id"`
	OwnerID     string       `gorm:"column:owner_id;uniqueIndex:idx_documents_owner_hash" json:"owner_id"`
	Kind        DocumentKind `gorm:"column:kind;uniqueIndex:idx_documents_owner_hash" json:"kind"`
	ContentHash string       `gorm:"column:content_hash;uniqueIndex:idx_documents_owner_hash" json:"content_hash"`
	RemoteHash  string       `gorm:"column:remote_hash" json:"remote_hash"`
	DocumentID  string       `gorm:"column:document_id" json:"document_id"`
	Response    []byte       `gorm:"column:response" json:"response"`
	CreatedAt   time.Time    `gorm:"column:created_at" json:"created_at"`
}

func (DocumentRecord) TableName() string { return "documents" }
