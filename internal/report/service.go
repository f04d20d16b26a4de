package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"costura-backend/internal/cache"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/ids"
	"costura-backend/internal/user"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Service: 管理画面向けの集計。ローカルキャッシュだけを読む
type Service struct {
	local *cache.Store
	loc   *time.Location
	clock ids.Clock
	log   *zap.Logger
}

func NewService(local *cache.Store, loc *time.Location, clock ids.Clock, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{local: local, loc: loc, clock: clock, log: log.Named("report")}
}

// Today: 現地日付
func (s *Service) Today() string {
	return s.clock.Now().In(s.loc).Format(dateLayout)
}

// DailyProgress: 在籍中の作業者ごとの、その日の勤怠と出来高
func (s *Service) DailyProgress(ctx context.Context, date string) (Daily, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return Daily{}, apierr.ErrInvalid("date must be YYYY-MM-DD")
	}

	workers, err := s.local.ListUsers(ctx, user.RoleWorker, true)
	if err != nil {
		s.log.Error("list workers failed", zap.Error(err))
		return Daily{}, apierr.ErrInternal("read workers failed")
	}
	att, err := s.local.AttendanceByDate(ctx, date)
	if err != nil {
		s.log.Error("read attendance failed", zap.String("date", date), zap.Error(err))
		return Daily{}, apierr.ErrInternal("read attendance failed")
	}
	prod, err := s.local.ProductionBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		s.log.Error("read production failed", zap.String("date", date), zap.Error(err))
		return Daily{}, apierr.ErrInternal("read production failed")
	}

	byWorker := make(map[string]cache.AttendanceRecord, len(att))
	for _, a := range att {
		byWorker[a.WorkerID] = a
	}
	units := map[string]int64{}
	earnings := map[string]decimal.Decimal{}
	for _, p := range prod {
		units[p.WorkerID] += p.Quantity
		earnings[p.WorkerID] = earnings[p.WorkerID].Add(p.TotalPayment)
	}

	out := Daily{Date: date, Workers: make([]WorkerDay, 0, len(workers)), Earnings: decimal.Zero}
	for _, w := range workers {
		row := WorkerDay{
			WorkerID: w.ID,
			Name:     w.Name,
			Status:   statusNoRecord,
			Units:    units[w.ID],
			Earnings: earnings[w.ID],
		}
		if a, ok := byWorker[w.ID]; ok {
			row.Status = a.Status
			row.EntryTime = a.EntryTime
			row.ExitTime = a.ExitTime
		}
		switch row.Status {
		case "PRESENT", "HALF_DAY":
			out.Present++
		case "LATE":
			out.Present++
			out.Late++
		default:
			out.Absent++
		}
		out.Units += row.Units
		out.Earnings = out.Earnings.Add(row.Earnings)
		out.Workers = append(out.Workers, row)
	}
	return out, nil
}

// Dashboard: 在籍作業者数と、これまでの支払総額
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	workers, err := s.local.ListUsers(ctx, user.RoleWorker, true)
	if err != nil {
		return Dashboard{}, apierr.ErrInternal("read workers failed")
	}
	total, err := s.local.SumAllEarnings(ctx)
	if err != nil {
		return Dashboard{}, apierr.ErrInternal("sum earnings failed")
	}
	return Dashboard{ActiveWorkers: len(workers), TotalPayment: total}, nil
}
