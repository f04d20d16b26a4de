package attendance

import (
	"fmt"
	"time"

	"costura-backend/internal/platform/config"
)

// Policy: 始業時刻と遅刻判定
type Policy struct {
	workStart    int // 0:00 からの分
	threshold    int
	historyDays  int
	loc          *time.Location
	offlineQueue bool
}

func NewPolicy(cfg config.AttendanceConfig, loc *time.Location) (Policy, error) {
	start, err := minuteOfDay(cfg.WorkStart)
	if err != nil {
		return Policy{}, fmt.Errorf("work_start: %w", err)
	}
	if cfg.LateThresholdMinutes < 0 {
		return Policy{}, fmt.Errorf("late_threshold_minutes must be >= 0")
	}
	days := cfg.HistoryDays
	if days <= 0 {
		days = 30
	}
	if loc == nil {
		loc = time.UTC
	}
	return Policy{
		workStart:    start,
		threshold:    cfg.LateThresholdMinutes,
		historyDays:  days,
		loc:          loc,
		offlineQueue: cfg.OfflineQueue,
	}, nil
}

func minuteOfDay(hhmm string) (int, error) {
	t, err := time.Parse(ClockLayout, hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// StatusAt: 始業 + 猶予 を「過ぎた」ら LATE。ちょうどは PRESENT
func (p Policy) StatusAt(entry string) (Status, error) {
	m, err := minuteOfDay(entry)
	if err != nil {
		return "", err
	}
	if m > p.workStart+p.threshold {
		return StatusLate, nil
	}
	return StatusPresent, nil
}

// stamp: 現地時刻で日付・時刻・年月に分解する
func (p Policy) stamp(t time.Time) (date, clock, yearMonth string) {
	t = t.In(p.loc)
	return t.Format(DateLayout), t.Format(ClockLayout), t.Format(YearMonthLayout)
}

func (p Policy) Location() *time.Location { return p.loc }
