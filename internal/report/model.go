package report

import "github.com/shopspring/decimal"

// 勤怠記録が無い日は欠勤として数える
const statusNoRecord = "ABSENT"

type WorkerDay struct {
	WorkerID  string
	Name      string
	Status    string
	EntryTime string
	ExitTime  string
	Units     int64
	Earnings  decimal.Decimal
}

type Daily struct {
	Date     string
	Workers  []WorkerDay
	Present  int
	Late     int
	Absent   int
	Units    int64
	Earnings decimal.Decimal
}

type Dashboard struct {
	ActiveWorkers int
	TotalPayment  decimal.Decimal
}

func (w WorkerDay) toDTO() WorkerDayResponse {
	return WorkerDayResponse{
		WorkerID:  w.WorkerID,
		Name:      w.Name,
		Status:    w.Status,
		EntryTime: w.EntryTime,
		ExitTime:  w.ExitTime,
		Units:     w.Units,
		Earnings:  w.Earnings.StringFixed(2),
	}
}

func (d Daily) toDTO() DailyResponse {
	out := DailyResponse{
		Date:     d.Date,
		Workers:  make([]WorkerDayResponse, 0, len(d.Workers)),
		Present:  d.Present,
		Late:     d.Late,
		Absent:   d.Absent,
		Units:    d.Units,
		Earnings: d.Earnings.StringFixed(2),
	}
	for _, w := range d.Workers {
		out.Workers = append(out.Workers, w.toDTO())
	}
	return out
}
