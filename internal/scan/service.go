package scan

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"costura-backend/internal/attendance"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/config"
	"costura-backend/internal/platform/metrics"
	"costura-backend/internal/platform/trace"
	"costura-backend/internal/qr"
)

type Action string

const (
	ActionEntry Action = "ENTRY"
	ActionExit  Action = "EXIT"
)

// Attendance: *attendance.Service が満たす
type Attendance interface {
	Today(ctx context.Context, workerID string) (attendance.Record, error)
	RegisterEntry(ctx context.Context, workerID, workerName string) (attendance.Record, error)
	RegisterExit(ctx context.Context, workerID string) (attendance.Record, error)
}

type Result struct {
	Action     Action
	LocationID string
	Record     attendance.Record
}

type Service struct {
	att     Attendance
	ledger  Ledger
	lockTTL time.Duration
	allowed []string
	metrics metrics.Recorder
	log     *zap.Logger
}

func NewService(att Attendance, ledger Ledger, cfg config.ScanConfig, rec metrics.Recorder, log *zap.Logger) *Service {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Service{
		att:     att,
		ledger:  ledger,
		lockTTL: ttl,
		allowed: cfg.AllowedLocations,
		metrics: rec,
		log:     log.Named("scan"),
	}
}

// Scan: QR を読んだ作業者の本日の記録から入室か退室かを決めて登録する。
// 判定は毎回最新の記録を読み直す
func (s *Service) Scan(ctx context.Context, workerID, workerName, payload string) (Result, error) {
	ctx, span := trace.Start(ctx, "scan.Scan", attribute.String("worker.id", workerID))
	defer span.End()

	res, err := s.scan(ctx, workerID, workerName, payload)
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(apierr.CodeOf(err)))
	}
	action := string(res.Action)
	if action == "" {
		action = "none"
	}
	s.metrics.ScanHandled(action, outcome)
	return res, err
}

func (s *Service) scan(ctx context.Context, workerID, workerName, payload string) (Result, error) {
	if workerID == "" {
		return Result{}, apierr.ErrInvalid("worker_id is required")
	}
	p, err := qr.Decode(payload)
	if err != nil {
		s.log.Info("unreadable qr payload", zap.String("worker_id", workerID), zap.Error(err))
		return Result{}, apierr.ErrInvalid("invalid qr code")
	}
	if len(s.allowed) > 0 && !slices.Contains(s.allowed, p.LocationID) {
		return Result{}, apierr.ErrForbidden("qr code is not valid for this location")
	}

	token, ok, err := s.ledger.Acquire(ctx, workerID, s.lockTTL)
	if err != nil {
		return Result{}, apierr.ErrUnavailable("scan lock unavailable", err)
	}
	if !ok {
		return Result{}, apierr.ErrScanBusy("previous scan still in progress")
	}
	defer func() {
		// リクエストが切れても解放はする
		if err := s.ledger.Release(context.WithoutCancel(ctx), workerID, token); err != nil {
			s.log.Warn("release scan lock failed", zap.String("worker_id", workerID), zap.Error(err))
		}
	}()

	action, err := s.nextAction(ctx, workerID)
	if err != nil {
		return Result{}, err
	}
	res := Result{Action: action, LocationID: p.LocationID}
	if p.Type != "" && string(p.Type) != string(action) {
		s.log.Debug("qr directive ignored",
			zap.String("worker_id", workerID),
			zap.String("qr_type", string(p.Type)),
			zap.String("action", string(action)),
		)
	}

	// 使い捨て QR は登録前に消費する
	if p.SingleUse() {
		first, err := s.ledger.MarkUsed(ctx, p.UniqueID)
		if err != nil {
			return res, apierr.ErrUnavailable("qr ledger unavailable", err)
		}
		if !first {
			return res, apierr.ErrConflict("qr code already used")
		}
	}

	switch action {
	case ActionExit:
		res.Record, err = s.att.RegisterExit(ctx, workerID)
	default:
		res.Record, err = s.att.RegisterEntry(ctx, workerID, workerName)
	}
	if err != nil {
		return res, err
	}
	s.log.Info("scan handled",
		zap.String("worker_id", workerID),
		zap.String("action", string(action)),
		zap.String("location", p.LocationID),
	)
	return res, nil
}

// nextAction: 本日の記録が無いか退勤済みなら ENTRY、未退勤なら EXIT
func (s *Service) nextAction(ctx context.Context, workerID string) (Action, error) {
	rec, err := s.att.Today(ctx, workerID)
	if err != nil {
		if apierr.Is(err, apierr.CodeNotFound) {
			return ActionEntry, nil
		}
		var api *apierr.APIError
		if errors.As(err, &api) {
			return "", err
		}
		return "", apierr.ErrUnavailable("read today's attendance failed", err)
	}
	if rec.Open() {
		return ActionExit, nil
	}
	return ActionEntry, nil
}
