package attendance

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"costura-backend/internal/docstore"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/trace"
)

// SyncUnsynced: 未同期のローカル記録をリモートへ送る。失敗分は次回に持ち越す
func (s *Service) SyncUnsynced(ctx context.Context) (SyncReport, error) {
	ctx, span := trace.Start(ctx, "attendance.SyncUnsynced")
	defer span.End()

	rows, err := s.local.UnsyncedAttendance(ctx)
	if err != nil {
		return SyncReport{}, apierr.ErrInternal("read unsynced attendance failed")
	}

	var rep SyncReport
	for _, row := range rows {
		rec := fromCache(row)
		if err := s.store.Put(ctx, rec); err != nil {
			rep.Failed++
			s.metrics.SyncPushed("attendance", "error")
			if errors.Is(err, docstore.ErrAlreadyExists) {
				// 別端末が同じ日に登録済み
				s.log.Warn("attendance conflicts with remote record", zap.String("attendance_id", rec.ID), zap.String("date", rec.Date))
			} else {
				s.log.Warn("push attendance failed", zap.String("attendance_id", rec.ID), zap.Error(err))
			}
			continue
		}
		// 送信済みなら統計の加算に失敗しても同期済みにする（ずれは許容）
		if row.StatsPending {
			_ = s.bumpStats(ctx, rec)
		}
		if err := s.local.MarkAttendanceSynced(ctx, rec.ID); err != nil {
			rep.Failed++
			s.log.Warn("mark attendance synced failed", zap.String("attendance_id", rec.ID), zap.Error(err))
			continue
		}
		rep.Pushed++
		s.metrics.SyncPushed("attendance", "ok")
	}
	if len(rows) > 0 {
		s.log.Info("attendance sync finished", zap.Int("pushed", rep.Pushed), zap.Int("failed", rep.Failed))
	}
	return rep, nil
}

// Prune: before より前の同期済みローカル記録を消す。自動では呼ばれない
func (s *Service) Prune(ctx context.Context, before string) (int64, error) {
	if _, err := time.Parse(DateLayout, before); err != nil {
		return 0, apierr.ErrInvalid("before must be YYYY-MM-DD")
	}
	n, err := s.local.PruneAttendanceBefore(ctx, before)
	if err != nil {
		return 0, apierr.ErrInternal("prune attendance failed")
	}
	s.log.Info("attendance pruned", zap.String("before", before), zap.Int64("deleted", n))
	return n, nil
}
