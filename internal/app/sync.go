package app

import (
	"context"

	"go.uber.org/zap"

	"costura-backend/internal/attendance"
	"costura-backend/internal/operation"
	"costura-backend/internal/production"
	"costura-backend/internal/user"
)

// SyncReport: 一括同期の結果。取得に失敗した項目は Errors に入る
type SyncReport struct {
	Attendance attendance.SyncReport   `json:"attendance"`
	Production production.SyncReport   `json:"production"`
	Users      user.RefreshReport      `json:"users"`
	Operations operation.RefreshReport `json:"operations"`
	Errors     []string                `json:"errors,omitempty"`
}

// Sync: 未同期の記録を送り、作業者と作業の一覧を取り直す。
// どれかが失敗しても残りは続ける
func (a *App) Sync(ctx context.Context) SyncReport {
	var rep SyncReport
	fail := func(what string, err error) {
		a.Log.Warn("sync step failed", zap.String("step", what), zap.Error(err))
		rep.Errors = append(rep.Errors, what+": "+err.Error())
	}

	var err error
	if rep.Attendance, err = a.Attendance.SyncUnsynced(ctx); err != nil {
		fail("attendance", err)
	}
	if rep.Production, err = a.Production.SyncUnsynced(ctx); err != nil {
		fail("production", err)
	}
	if rep.Users, err = a.Users.Refresh(ctx); err != nil {
		fail("users", err)
	}
	if rep.Operations, err = a.Operations.Refresh(ctx); err != nil {
		fail("operations", err)
	}
	a.Log.Info("sync finished",
		zap.Int("attendance_pushed", rep.Attendance.Pushed),
		zap.Int("production_pushed", rep.Production.Pushed),
		zap.Int("users", rep.Users.Updated),
		zap.Int("operations", rep.Operations.Updated),
		zap.Int("errors", len(rep.Errors)),
	)
	return rep
}
