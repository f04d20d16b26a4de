// Package docstoretest はテスト用の docstore ラッパ。
package docstoretest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"costura-backend/internal/docstore"
)

var ErrOffline = errors.New("docstoretest: remote offline")

// Flaky: Offline(true) の間は全操作が ErrOffline を返す
type Flaky struct {
	docstore.Store
	offline atomic.Bool
}

func Wrap(s docstore.Store) *Flaky { return &Flaky{Store: s} }

func (f *Flaky) Offline(v bool) { f.offline.Store(v) }

func (f *Flaky) fail() error {
	if f.offline.Load() {
		return ErrOffline
	}
	return nil
}

func (f *Flaky) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if err := f.fail(); err != nil {
		return docstore.Snapshot{}, err
	}
	return f.Store.Get(ctx, path)
}

func (f *Flaky) Create(ctx context.Context, path string, doc map[string]any, uniqueKey string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Create(ctx, path, doc, uniqueKey)
}

func (f *Flaky) Set(ctx context.Context, path string, doc map[string]any, uniqueKey string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Set(ctx, path, doc, uniqueKey)
}

func (f *Flaky) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Update(ctx, path, fields)
}

func (f *Flaky) Increment(ctx context.Context, path string, deltas map[string]decimal.Decimal, set map[string]any) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Increment(ctx, path, deltas, set)
}

func (f *Flaky) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.Query(ctx, collection, q)
}

func (f *Flaky) List(ctx context.Context, collection string) ([]docstore.Snapshot, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.List(ctx, collection)
}

func (f *Flaky) Delete(ctx context.Context, path string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Delete(ctx, path)
}
