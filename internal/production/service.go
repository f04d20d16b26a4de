package production

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/ids"
	"costura-backend/internal/platform/metrics"
	"costura-backend/internal/platform/trace"
)

const yearMonthLayout = "2006-01"

type Service struct {
	store        *Store
	local        *cache.Store
	loc          *time.Location
	offlineQueue bool
	clock        ids.Clock
	ids          ids.IDGen
	metrics      metrics.Recorder
	log          *zap.Logger
}

func NewService(remote docstore.Store, local *cache.Store, loc *time.Location, offlineQueue bool, clock ids.Clock, gen ids.IDGen, rec metrics.Recorder, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:        NewStore(remote),
		local:        local,
		loc:          loc,
		offlineQueue: offlineQueue,
		clock:        clock,
		ids:          gen,
		metrics:      rec,
		log:          log.Named("production"),
	}
}

// Register: total = quantity × 単価 を登録時に確定させる。同じ内容でも毎回別記録
func (s *Service) Register(ctx context.Context, in RegisterInput) (Record, error) {
	ctx, span := trace.Start(ctx, "production.Register",
		attribute.String("worker.id", in.WorkerID),
		attribute.String("operation.id", in.OperationID),
		attribute.Int64("quantity", in.Quantity),
	)
	defer span.End()

	if in.WorkerID == "" || in.OperationID == "" {
		return Record{}, apierr.ErrInvalid("worker_id and operation_id are required")
	}
	if in.Quantity <= 0 {
		return Record{}, apierr.ErrInvalid("quantity must be positive")
	}
	if in.PaymentPerUnit.IsNegative() {
		return Record{}, apierr.ErrInvalid("payment_per_unit must not be negative")
	}
	id, err := s.ids.New()
	if err != nil {
		return Record{}, apierr.ErrInternal("id generation failed")
	}

	now := s.clock.Now()
	rec := Record{
		ID:             id,
		WorkerID:       in.WorkerID,
		OperationID:    in.OperationID,
		OperationName:  in.OperationName,
		Quantity:       in.Quantity,
		PaymentPerUnit: in.PaymentPerUnit,
		TotalPayment:   in.PaymentPerUnit.Mul(decimal.NewFromInt(in.Quantity)),
		Date:           now.UTC(),
		YearMonth:      now.In(s.loc).Format(yearMonthLayout),
		Synced:         true,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			s.log.Error("production id already taken", zap.String("production_id", id), zap.Error(err))
			return Record{}, apierr.ErrConflict("production record already exists")
		}
		if !s.offlineQueue {
			s.log.Warn("register production failed", zap.String("worker_id", in.WorkerID), zap.Error(err))
			return Record{}, apierr.ErrUnavailable("register production failed", err)
		}
		rec.Synced = false
		if err := s.local.InsertProduction(ctx, rec.toCache(true)); err != nil {
			s.log.Error("write local production failed", zap.String("production_id", id), zap.Error(err))
			return Record{}, apierr.ErrInternal("write local production failed")
		}
		s.log.Warn("production queued offline", zap.String("worker_id", in.WorkerID), zap.String("production_id", id), zap.Error(err))
		s.metrics.ProductionRegistered(in.Quantity)
		return rec, nil
	}

	_ = s.bumpStats(ctx, rec)
	if err := s.local.InsertProduction(ctx, rec.toCache(false)); err != nil {
		s.log.Warn("mirror production to cache failed", zap.String("production_id", id), zap.Error(err))
	}
	s.metrics.ProductionRegistered(in.Quantity)
	s.log.Info("production registered",
		zap.String("worker_id", in.WorkerID),
		zap.String("operation_id", in.OperationID),
		zap.Int64("quantity", in.Quantity),
		zap.String("total", rec.TotalPayment.String()),
	)
	return rec, nil
}

// bumpStats: 加算の失敗は記録の成否に影響しない
func (s *Service) bumpStats(ctx context.Context, rec Record) error {
	if err := s.store.AddEarnings(ctx, rec.WorkerID, rec.TotalPayment, rec.Quantity, cache.FormatTime(s.clock.Now())); err != nil {
		s.log.Warn("increment worker earnings failed", zap.String("worker_id", rec.WorkerID), zap.Error(err))
		return err
	}
	if err := s.local.AddUserStats(ctx, rec.WorkerID, rec.TotalPayment, rec.Quantity, 0, ""); err != nil && !errors.Is(err, cache.ErrNotFound) {
		s.log.Warn("increment cached earnings failed", zap.String("worker_id", rec.WorkerID), zap.Error(err))
	}
	return nil
}

// TotalEarnings: リモートの全記録を合算。取れなければローカル合計
func (s *Service) TotalEarnings(ctx context.Context, workerID string) (Earnings, error) {
	if workerID == "" {
		return Earnings{}, apierr.ErrInvalid("worker_id is required")
	}
	snaps, err := s.store.All(ctx, workerID)
	if err != nil {
		s.log.Warn("remote earnings failed, using local cache", zap.String("worker_id", workerID), zap.Error(err))
		sum, lerr := s.local.SumEarnings(ctx, workerID)
		if lerr != nil {
			return Earnings{}, apierr.ErrUnavailable("earnings unavailable", errors.Join(err, lerr))
		}
		return Earnings{Total: sum, Source: SourceLocal}, nil
	}
	local, err := s.local.ProductionByWorkerSince(ctx, workerID, time.Time{})
	if err != nil {
		s.log.Warn("local production read failed", zap.String("worker_id", workerID), zap.Error(err))
	}
	recs := mergePending(s.decodeAll(snaps), local)
	return Earnings{Total: sumPayments(recs), Source: SourceRemote}, nil
}

// Today: 現地の 0 時以降の記録
func (s *Service) Today(ctx context.Context, workerID string) ([]Record, error) {
	if workerID == "" {
		return nil, apierr.ErrInvalid("worker_id is required")
	}
	start := startOfDay(s.clock.Now(), s.loc)
	snaps, err := s.store.Since(ctx, workerID, cache.FormatTime(start))
	if err != nil {
		return nil, apierr.ErrUnavailable("query today's production failed", err)
	}
	local, err := s.local.ProductionByWorkerSince(ctx, workerID, start)
	if err != nil {
		s.log.Warn("local production read failed", zap.String("worker_id", workerID), zap.Error(err))
	}
	return mergePending(s.decodeAll(snaps), local), nil
}

// TodayQuantity: 本日のある作業の合計数量
func (s *Service) TodayQuantity(ctx context.Context, workerID, operationID string) (int64, error) {
	recs, err := s.Today(ctx, workerID)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, r := range recs {
		if r.OperationID == operationID {
			n += r.Quantity
		}
	}
	return n, nil
}

func (s *Service) ByMonth(ctx context.Context, workerID, yearMonth string) ([]Record, error) {
	if workerID == "" {
		return nil, apierr.ErrInvalid("worker_id is required")
	}
	if _, err := time.Parse(yearMonthLayout, yearMonth); err != nil {
		return nil, apierr.ErrInvalid("month must be YYYY-MM")
	}
	snaps, err := s.store.ByMonth(ctx, workerID, yearMonth)
	if err != nil {
		return nil, apierr.ErrUnavailable("query monthly production failed", err)
	}
	local, err := s.local.ProductionByWorkerMonth(ctx, workerID, yearMonth)
	if err != nil {
		s.log.Warn("local production read failed", zap.String("worker_id", workerID), zap.Error(err))
	}
	return mergePending(s.decodeAll(snaps), local), nil
}

func (s *Service) MonthlyEarnings(ctx context.Context, workerID, yearMonth string) (decimal.Decimal, error) {
	recs, err := s.ByMonth(ctx, workerID, yearMonth)
	if err != nil {
		return decimal.Zero, err
	}
	return sumPayments(recs), nil
}

// SyncUnsynced: 未同期の記録を送り、保留していた統計加算を反映する
func (s *Service) SyncUnsynced(ctx context.Context) (SyncReport, error) {
	ctx, span := trace.Start(ctx, "production.SyncUnsynced")
	defer span.End()

	rows, err := s.local.UnsyncedProduction(ctx)
	if err != nil {
		return SyncReport{}, apierr.ErrInternal("read unsynced production failed")
	}
	var rep SyncReport
	for _, row := range rows {
		rec := fromCache(row)
		if err := s.store.Put(ctx, rec); err != nil {
			rep.Failed++
			s.metrics.SyncPushed("production", "error")
			s.log.Warn("push production failed", zap.String("production_id", rec.ID), zap.Error(err))
			continue
		}
		// 送信済みなら統計の加算に失敗しても同期済みにする（ずれは許容）
		if row.StatsPending {
			_ = s.bumpStats(ctx, rec)
		}
		if err := s.local.MarkProductionSynced(ctx, rec.ID); err != nil {
			rep.Failed++
			s.log.Warn("mark production synced failed", zap.String("production_id", rec.ID), zap.Error(err))
			continue
		}
		rep.Pushed++
		s.metrics.SyncPushed("production", "ok")
	}
	if len(rows) > 0 {
		s.log.Info("production sync finished", zap.Int("pushed", rep.Pushed), zap.Int("failed", rep.Failed))
	}
	return rep, nil
}

// Prune: before より前の同期済みローカル記録を消す
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.local.PruneProductionBefore(ctx, before)
	if err != nil {
		return 0, apierr.ErrInternal("prune production failed")
	}
	s.log.Info("production pruned", zap.Time("before", before), zap.Int64("deleted", n))
	return n, nil
}

func (s *Service) decodeAll(snaps []docstore.Snapshot) []Record {
	out := make([]Record, 0, len(snaps))
	for _, snap := range snaps {
		r, err := decodeRecord(snap)
		if err != nil {
			s.log.Error("invalid production document", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
