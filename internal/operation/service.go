package operation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/ids"
)

type Service struct {
	remote docstore.Store
	local  *cache.Store
	clock  ids.Clock
	ids    ids.IDGen
	log    *zap.Logger
}

func NewService(remote docstore.Store, local *cache.Store, clock ids.Clock, gen ids.IDGen, log *zap.Logger) *Service {
	return &Service{remote: remote, local: local, clock: clock, ids: gen, log: log.Named("operation")}
}

func validRate(d decimal.Decimal) bool { return d.IsPositive() }

// ListActive: ローカルキャッシュを読む
func (s *Service) ListActive(ctx context.Context) ([]Operation, error) {
	return s.list(ctx, true)
}

func (s *Service) ListAll(ctx context.Context) ([]Operation, error) {
	return s.list(ctx, false)
}

func (s *Service) list(ctx context.Context, activeOnly bool) ([]Operation, error) {
	rows, err := s.local.ListOperations(ctx, activeOnly)
	if err != nil {
		return nil, apierr.ErrInternal("list operations failed")
	}
	out := make([]Operation, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromCache(r))
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, in CreateOperationRequest) (Operation, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Operation{}, apierr.ErrInvalid("name is required")
	}
	if in.PaymentPerUnit == nil || !validRate(*in.PaymentPerUnit) {
		return Operation{}, apierr.ErrInvalid("payment_per_unit must be positive")
	}
	if strings.Contains(in.ID, "/") {
		return Operation{}, apierr.ErrInvalid("id must not contain '/'")
	}
	id := in.ID
	if id == "" {
		var err error
		if id, err = s.ids.New(); err != nil {
			return Operation{}, apierr.ErrInternal("id generation failed")
		}
	}

	o := Operation{ID: id, Name: name, PaymentPerUnit: *in.PaymentPerUnit, Active: true, CreatedAt: s.clock.Now()}
	if err := s.remote.Create(ctx, docstore.OperationPath(o.ID), newOperationDoc(o), ""); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return Operation{}, apierr.ErrConflict("operation already exists")
		}
		return Operation{}, apierr.ErrUnavailable("create operation failed", err)
	}
	s.mirror(ctx, o)
	s.log.Info("operation created", zap.String("operation_id", o.ID), zap.String("rate", o.PaymentPerUnit.String()))
	return o, nil
}

// Update: 単価の変更は過去の出来高記録には影響しない
func (s *Service) Update(ctx context.Context, id string, in UpdateOperationRequest) (Operation, error) {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Operation{}, apierr.ErrInvalid("name must not be empty")
		}
		fields["name"] = name
	}
	if in.PaymentPerUnit != nil {
		if !validRate(*in.PaymentPerUnit) {
			return Operation{}, apierr.ErrInvalid("payment_per_unit must be positive")
		}
		fields["paymentPerUnit"] = json.Number(in.PaymentPerUnit.String())
	}
	if len(fields) == 0 {
		return Operation{}, apierr.ErrInvalid("nothing to update")
	}
	return s.updateAndReload(ctx, id, fields)
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (Operation, error) {
	return s.updateAndReload(ctx, id, map[string]any{"isActive": active})
}

func (s *Service) updateAndReload(ctx context.Context, id string, fields map[string]any) (Operation, error) {
	if err := s.remote.Update(ctx, docstore.OperationPath(id), fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Operation{}, apierr.ErrNotFound("operation not found")
		}
		return Operation{}, apierr.ErrUnavailable("update operation failed", err)
	}
	return s.Get(ctx, id)
}

// Get: リモートを読み、キャッシュも更新する
func (s *Service) Get(ctx context.Context, id string) (Operation, error) {
	snap, err := s.remote.Get(ctx, docstore.OperationPath(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return Operation{}, apierr.ErrNotFound("operation not found")
	}
	if err != nil {
		return Operation{}, apierr.ErrUnavailable("get operation failed", err)
	}
	o, err := decodeOperation(snap)
	if err != nil {
		s.log.Error("invalid operation document", zap.String("path", snap.Path), zap.Error(err))
		return Operation{}, apierr.ErrInternal("operation document is malformed")
	}
	s.mirror(ctx, o)
	return o, nil
}

// Lookup: 出来高登録時の単価解決。キャッシュ優先でリモートにフォールバック
func (s *Service) Lookup(ctx context.Context, id string) (Operation, error) {
	c, err := s.local.GetOperation(ctx, id)
	if err == nil {
		return fromCache(c), nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.log.Warn("local operation lookup failed", zap.String("operation_id", id), zap.Error(err))
	}
	return s.Get(ctx, id)
}

// Refresh: operations を全件キャッシュへ
func (s *Service) Refresh(ctx context.Context) (RefreshReport, error) {
	snaps, err := s.remote.List(ctx, docstore.OperationsCollection)
	if err != nil {
		return RefreshReport{}, apierr.ErrUnavailable("list operations failed", err)
	}
	now := s.clock.Now()
	var rep RefreshReport
	rows := make([]cache.Operation, 0, len(snaps))
	for _, snap := range snaps {
		o, err := decodeOperation(snap)
		if err != nil {
			rep.Invalid++
			s.log.Error("invalid operation document", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		rows = append(rows, o.toCache(now))
	}
	if err := s.local.UpsertOperations(ctx, rows); err != nil {
		return RefreshReport{}, apierr.ErrInternal("cache operations failed")
	}
	rep.Updated = len(rows)
	s.log.Info("operations refreshed", zap.Int("updated", rep.Updated), zap.Int("invalid", rep.Invalid))
	return rep, nil
}

func (s *Service) mirror(ctx context.Context, o Operation) {
	if err := s.local.UpsertOperation(ctx, o.toCache(s.clock.Now())); err != nil {
		s.log.Warn("mirror operation to cache failed", zap.String("operation_id", o.ID), zap.Error(err))
	}
}
