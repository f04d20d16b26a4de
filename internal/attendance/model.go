package attendance

import (
	"time"

	"costura-backend/internal/cache"
)

type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusAbsent  Status = "ABSENT"
	StatusHalfDay Status = "HALF_DAY"
)

const (
	DateLayout      = "2006-01-02"
	ClockLayout     = "15:04"
	YearMonthLayout = "2006-01"
)

// Record: 1 人 1 日 1 件
type Record struct {
	ID         string
	WorkerID   string
	WorkerName string
	Date       string // YYYY-MM-DD
	EntryTime  string // HH:mm
	ExitTime   string // 空 = 未退勤
	Status     Status
	CreatedAt  time.Time
	YearMonth  string
	Synced     bool
}

func (r Record) Open() bool { return r.ExitTime == "" }

type Statistics struct {
	WorkedDays int `json:"worked_days"`
	OnTimeDays int `json:"on_time_days"`
	LateDays   int `json:"late_days"`
	AbsentDays int `json:"absent_days"`
}

func fromCache(c cache.AttendanceRecord) Record {
	return Record{
		ID:         c.ID,
		WorkerID:   c.WorkerID,
		WorkerName: c.WorkerName,
		Date:       c.Date,
		EntryTime:  c.EntryTime,
		ExitTime:   c.ExitTime,
		Status:     Status(c.Status),
		CreatedAt:  c.CreatedAt,
		YearMonth:  c.YearMonth,
		Synced:     c.Synced,
	}
}

func (r Record) toCache(statsPending bool) cache.AttendanceRecord {
	return cache.AttendanceRecord{
		ID:           r.ID,
		WorkerID:     r.WorkerID,
		WorkerName:   r.WorkerName,
		Date:         r.Date,
		EntryTime:    r.EntryTime,
		ExitTime:     r.ExitTime,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
		YearMonth:    r.YearMonth,
		Synced:       r.Synced,
		StatsPending: statsPending,
	}
}

func (r Record) ToDTO() RecordResponse {
	res := RecordResponse{
		ID:         r.ID,
		WorkerID:   r.WorkerID,
		WorkerName: r.WorkerName,
		Date:       r.Date,
		EntryTime:  r.EntryTime,
		Status:     string(r.Status),
		YearMonth:  r.YearMonth,
		CreatedAt:  r.CreatedAt,
		Synced:     r.Synced,
	}
	if r.ExitTime != "" {
		exit := r.ExitTime
		res.ExitTime = &exit
	}
	return res
}

// Summarize: 出勤日は入室時刻のある記録を数える
func Summarize(recs []Record) Statistics {
	var st Statistics
	for _, r := range recs {
		if r.EntryTime != "" && r.Status != StatusAbsent {
			st.WorkedDays++
		}
		switch r.Status {
		case StatusPresent:
			st.OnTimeDays++
		case StatusLate:
			st.LateDays++
		case StatusAbsent:
			st.AbsentDays++
		}
	}
	return st
}
