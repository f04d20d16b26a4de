package attendance

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

type Service struct {
	store   *Store
	local   *cache.Store
	policy  Policy
	clock   ids.Clock
	ids     ids.IDGen
	metrics metrics.Recorder
	log     *zap.Logger
}

func NewService(remote docstore.Store, local *cache.Store, policy Policy, clock ids.Clock, gen ids.IDGen, rec metrics.Recorder, log *zap.Logger) *Service {
	return &Service{
		store:   NewStore(remote),
		local:   local,
		policy:  policy,
		clock:   clock,
		ids:     gen,
		metrics: rec,
		log:     log.Named("attendance"),
	}
}

// RegisterEntry: 本日の入室を記録する。既にあれば CONFLICT
func (s *Service) RegisterEntry(ctx context.Context, workerID, workerName string) (Record, error) {
	ctx, span := trace.Start(ctx, "attendance.RegisterEntry", attribute.String("worker.id", workerID))
	defer span.End()

	if workerID == "" {
		return Record{}, apierr.ErrInvalid("worker_id is required")
	}
	now := s.clock.Now()
	date, clock, ym := s.policy.stamp(now)

	if _, err := s.local.GetAttendance(ctx, workerID, date); err == nil {
		return Record{}, apierr.ErrConflict("attendance already registered today")
	} else if !errors.Is(err, cache.ErrNotFound) {
		return Record{}, apierr.ErrInternal("read local attendance failed")
	}

	status, err := s.policy.StatusAt(clock)
	if err != nil {
		return Record{}, apierr.ErrInternal("status evaluation failed")
	}
	id, err := s.ids.New()
	if err != nil {
		return Record{}, apierr.ErrInternal("id generation failed")
	}
	if workerName == "" {
		workerName = s.resolveName(ctx, workerID)
	}

	rec := Record{
		ID:         id,
		WorkerID:   workerID,
		WorkerName: workerName,
		Date:       date,
		EntryTime:  clock,
		Status:     status,
		CreatedAt:  now,
		YearMonth:  ym,
		Synced:     true,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return Record{}, apierr.ErrConflict("attendance already registered today")
		}
		if !s.policy.offlineQueue {
			s.log.Warn("register entry failed", zap.String("worker_id", workerID), zap.Error(err))
			return Record{}, apierr.ErrUnavailable("register entry failed", err)
		}
		// オフライン: ローカルに残し、統計は同期時に加算
		rec.Synced = false
		if err := s.local.PutAttendance(ctx, rec.toCache(true)); err != nil {
			return Record{}, s.localPutErr(err)
		}
		s.log.Warn("entry queued offline", zap.String("worker_id", workerID), zap.String("attendance_id", id), zap.Error(err))
		s.metrics.AttendanceRegistered("entry", string(status))
		return rec, nil
	}

	_ = s.bumpStats(ctx, rec)
	if err := s.local.PutAttendance(ctx, rec.toCache(false)); err != nil {
		s.log.Warn("mirror entry to cache failed", zap.String("attendance_id", id), zap.Error(err))
	}
	s.metrics.AttendanceRegistered("entry", string(status))
	s.log.Info("entry registered",
		zap.String("worker_id", workerID),
		zap.String("entry_time", clock),
		zap.String("status", string(status)),
	)
	return rec, nil
}

// RegisterExit: 本日の未退勤記録に退勤時刻を入れる。一度だけ
func (s *Service) RegisterExit(ctx context.Context, workerID string) (Record, error) {
	ctx, span := trace.Start(ctx, "attendance.RegisterExit", attribute.String("worker.id", workerID))
	defer span.End()

	if workerID == "" {
		return Record{}, apierr.ErrInvalid("worker_id is required")
	}
	now := s.clock.Now()
	date, clock, _ := s.policy.stamp(now)

	rec, err := s.findToday(ctx, workerID, date)
	if apierr.Is(err, apierr.CodeNotFound) {
		return Record{}, apierr.ErrConflict("no entry registered today")
	}
	if err != nil {
		return Record{}, err
	}
	if !rec.Open() {
		return Record{}, apierr.ErrConflict("exit already registered today")
	}
	if clock <= rec.EntryTime {
		return Record{}, apierr.ErrConflict("exit must be after entry")
	}

	if !rec.Synced {
		// 入室自体が未同期なら同期時にまとめて送る
		return s.closeLocal(ctx, rec, clock, false)
	}
	if err := s.store.SetExit(ctx, rec, clock); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Record{}, apierr.ErrNotFound("attendance record not found")
		}
		if !s.policy.offlineQueue {
			s.log.Warn("register exit failed", zap.String("worker_id", workerID), zap.Error(err))
			return Record{}, apierr.ErrUnavailable("register exit failed", err)
		}
		s.log.Warn("exit queued offline", zap.String("worker_id", workerID), zap.String("attendance_id", rec.ID), zap.Error(err))
		return s.closeLocal(ctx, rec, clock, false)
	}
	return s.closeLocal(ctx, rec, clock, true)
}

func (s *Service) closeLocal(ctx context.Context, rec Record, exit string, synced bool) (Record, error) {
	rec.ExitTime = exit
	rec.Synced = rec.Synced && synced

	err := s.local.SetExitTime(ctx, rec.ID, exit, rec.Synced)
	if errors.Is(err, cache.ErrNotFound) {
		// リモートからだけ見つかった記録
		err = s.local.PutAttendance(ctx, rec.toCache(false))
	}
	if err != nil {
		if !rec.Synced {
			return Record{}, s.localPutErr(err)
		}
		s.log.Warn("mirror exit to cache failed", zap.String("attendance_id", rec.ID), zap.Error(err))
	}
	s.metrics.AttendanceRegistered("exit", string(rec.Status))
	s.log.Info("exit registered", zap.String("worker_id", rec.WorkerID), zap.String("exit_time", exit), zap.Bool("synced", rec.Synced))
	return rec, nil
}

// GetByWorkerAndDate: リモートを等値検索する。無ければ NOT_FOUND、通信失敗は UNAVAILABLE
func (s *Service) GetByWorkerAndDate(ctx context.Context, workerID, date string) (Record, error) {
	if workerID == "" {
		return Record{}, apierr.ErrInvalid("worker_id is required")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Record{}, apierr.ErrInvalid("date must be YYYY-MM-DD")
	}
	snaps, err := s.store.ByDate(ctx, workerID, date)
	if err != nil {
		return Record{}, apierr.ErrUnavailable("query attendance failed", err)
	}
	recs := s.decodeAll(snaps)
	if len(recs) == 0 {
		return Record{}, apierr.ErrNotFound("attendance not found")
	}
	rec := recs[0]
	if err := s.local.PutAttendance(ctx, rec.toCache(false)); err != nil {
		s.log.Debug("mirror attendance to cache skipped", zap.String("attendance_id", rec.ID), zap.Error(err))
	}
	return rec, nil
}

// Today: ローカル（未同期を含む）→ リモートの順で本日の記録を探す
func (s *Service) Today(ctx context.Context, workerID string) (Record, error) {
	date, _, _ := s.policy.stamp(s.clock.Now())
	return s.findToday(ctx, workerID, date)
}

func (s *Service) findToday(ctx context.Context, workerID, date string) (Record, error) {
	c, err := s.local.GetAttendance(ctx, workerID, date)
	if err == nil {
		return fromCache(c), nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.log.Warn("local attendance lookup failed", zap.String("worker_id", workerID), zap.Error(err))
	}
	return s.GetByWorkerAndDate(ctx, workerID, date)
}

// History: ref から遡って historyDays 日分、日付の新しい順
func (s *Service) History(ctx context.Context, workerID string, ref time.Time) ([]Record, error) {
	if workerID == "" {
		return nil, apierr.ErrInvalid("worker_id is required")
	}
	ref = ref.In(s.policy.loc)
	to := ref.Format(DateLayout)
	from := ref.AddDate(0, 0, -s.policy.historyDays).Format(DateLayout)

	snaps, err := s.store.Between(ctx, workerID, from, to)
	if err != nil {
		return nil, apierr.ErrUnavailable("query attendance history failed", err)
	}
	local, err := s.local.AttendanceByWorkerBetween(ctx, workerID, from, to)
	if err != nil {
		s.log.Warn("local attendance history failed", zap.String("worker_id", workerID), zap.Error(err))
	}
	return mergePending(s.decodeAll(snaps), local), nil
}

// HistoryByMonth: 年月キーで 1 か月分
func (s *Service) HistoryByMonth(ctx context.Context, workerID, yearMonth string) ([]Record, error) {
	if workerID == "" {
		return nil, apierr.ErrInvalid("worker_id is required")
	}
	if _, err := time.Parse(YearMonthLayout, yearMonth); err != nil {
		return nil, apierr.ErrInvalid("month must be YYYY-MM")
	}
	snaps, err := s.store.ByMonth(ctx, workerID, yearMonth)
	if err != nil {
		return nil, apierr.ErrUnavailable("query attendance month failed", err)
	}
	local, err := s.local.AttendanceByWorkerMonth(ctx, workerID, yearMonth)
	if err != nil {
		s.log.Warn("local attendance month failed", zap.String("worker_id", workerID), zap.Error(err))
	}
	return mergePending(s.decodeAll(snaps), local), nil
}

func (s *Service) Statistics(ctx context.Context, workerID string, ref time.Time) (Statistics, error) {
	recs, err := s.History(ctx, workerID, ref)
	if err != nil {
		return Statistics{}, err
	}
	return Summarize(recs), nil
}

func (s *Service) decodeAll(snaps []docstore.Snapshot) []Record {
	out := make([]Record, 0, len(snaps))
	for _, snap := range snaps {
		r, err := decodeRecord(snap)
		if err != nil {
			s.log.Error("invalid attendance document", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out
}

// bumpStats: 失敗しても記録自体は成功扱い
func (s *Service) bumpStats(ctx context.Context, rec Record) error {
	if err := s.store.AddWorkedDay(ctx, rec.WorkerID, rec.Date, cache.FormatTime(s.clock.Now())); err != nil {
		s.log.Warn("increment worker stats failed", zap.String("worker_id", rec.WorkerID), zap.Error(err))
		return err
	}
	if err := s.local.AddUserStats(ctx, rec.WorkerID, decimal.Zero, 0, 1, rec.Date); err != nil && !errors.Is(err, cache.ErrNotFound) {
		s.log.Warn("increment cached stats failed", zap.String("worker_id", rec.WorkerID), zap.Error(err))
	}
	return nil
}

func (s *Service) resolveName(ctx context.Context, workerID string) string {
	u, err := s.local.GetUser(ctx, workerID)
	if err != nil {
		s.log.Debug("worker name not cached", zap.String("worker_id", workerID), zap.Error(err))
		return workerID
	}
	return u.Name
}

func (s *Service) localPutErr(err error) error {
	if errors.Is(err, cache.ErrDuplicate) {
		return apierr.ErrConflict("attendance already registered today")
	}
	s.log.Error("write local attendance failed", zap.Error(err))
	return apierr.ErrInternal("write local attendance failed")
}
