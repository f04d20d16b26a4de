// Package docstore はリモート文書ストアの共通インターフェース。
// パスは users/{id}, users/{id}/attendance/{id}, users/{id}/production/{id},
// operations/{id} のサブコレクション形式のみを扱う。
package docstore

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("docstore: document not found")
	ErrAlreadyExists = errors.New("docstore: document already exists")
	ErrInvalidPath   = errors.New("docstore: invalid path")
	// 必須項目の欠落や型違い
	ErrInvalidDocument = errors.New("docstore: invalid document")
)

type Op string

const (
	OpEq  Op = "=="
	OpGte Op = ">="
	OpLte Op = "<="
	OpGt  Op = ">"
	OpLt  Op = "<"
)

type Filter struct {
	Field string // ドット区切り（"basicInfo.username"）
	Op    Op
	Value any
}

type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int // 0 = 無制限
}

func Where(field string, op Op, v any) Filter { return Filter{Field: field, Op: op, Value: v} }

type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	// Create: path か uniqueKey（空でなければ）が既にあれば ErrAlreadyExists
	Create(ctx context.Context, path string, doc map[string]any, uniqueKey string) error
	// Set: path で upsert。uniqueKey が他パスに使われていれば ErrAlreadyExists
	Set(ctx context.Context, path string, doc map[string]any, uniqueKey string) error
	Update(ctx context.Context, path string, fields map[string]any) error
	// Increment: deltas をサーバ側で加算し、set を同時に書く
	Increment(ctx context.Context, path string, deltas map[string]decimal.Decimal, set map[string]any) error
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	List(ctx context.Context, collection string) ([]Snapshot, error)
	Delete(ctx context.Context, path string) error
	Close(ctx context.Context) error
}

// ===== paths =====

const (
	UsersCollection      = "users"
	OperationsCollection = "operations"
)

func UserPath(userID string) string { return UsersCollection + "/" + userID }

func AttendanceCollection(userID string) string { return UserPath(userID) + "/attendance" }

func AttendancePath(userID, id string) string { return AttendanceCollection(userID) + "/" + id }

func ProductionCollection(userID string) string { return UserPath(userID) + "/production" }

func ProductionPath(userID, id string) string { return ProductionCollection(userID) + "/" + id }

func OperationPath(id string) string { return OperationsCollection + "/" + id }

// SplitPath: "a/b/c/d" → ("a/b/c", "d")。セグメント数は偶数のみ
func SplitPath(path string) (collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	for _, p := range parts {
		if p == "" {
			return "", "", ErrInvalidPath
		}
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}
