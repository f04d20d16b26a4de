package attendance

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
)

// users/{w}/attendance/{id} の形
type attendanceDoc struct {
	ID         string  `json:"id" validate:"required"`
	WorkerID   string  `json:"workerId" validate:"required"`
	WorkerName string  `json:"workerName"`
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	EntryTime  string  `json:"entryTime" validate:"required_unless=Status ABSENT"`
	ExitTime   *string `json:"exitTime"`
	Status     string  `json:"status" validate:"required,oneof=PRESENT LATE ABSENT HALF_DAY"`
	YearMonth  string  `json:"yearMonth" validate:"required"`
	CreatedAt  string  `json:"createdAt" validate:"required"`
}

// 同じ (worker, date) の二重登録はストレージの一意制約で弾く
func dayKey(workerID, date string) string {
	return docstore.AttendanceCollection(workerID) + "@" + date
}

func toDoc(r Record) map[string]any {
	var exit any
	if r.ExitTime != "" {
		exit = r.ExitTime
	}
	return map[string]any{
		"id":         r.ID,
		"workerId":   r.WorkerID,
		"workerName": r.WorkerName,
		"date":       r.Date,
		"entryTime":  r.EntryTime,
		"exitTime":   exit,
		"status":     string(r.Status),
		"yearMonth":  r.YearMonth,
		"createdAt":  cache.FormatTime(r.CreatedAt),
	}
}

func decodeRecord(snap docstore.Snapshot) (Record, error) {
	var d attendanceDoc
	if err := snap.Decode(&d); err != nil {
		return Record{}, err
	}
	r := Record{
		ID:         d.ID,
		WorkerID:   d.WorkerID,
		WorkerName: d.WorkerName,
		Date:       d.Date,
		EntryTime:  d.EntryTime,
		Status:     Status(d.Status),
		YearMonth:  d.YearMonth,
		Synced:     true,
	}
	if d.ExitTime != nil {
		r.ExitTime = *d.ExitTime
	}
	r.CreatedAt, _ = cache.ParseTime(d.CreatedAt)
	return r, nil
}

// Store: リモート側の出退勤文書
type Store struct {
	remote docstore.Store
}

func NewStore(remote docstore.Store) *Store { return &Store{remote: remote} }

func (s *Store) Create(ctx context.Context, r Record) error {
	return s.remote.Create(ctx, docstore.AttendancePath(r.WorkerID, r.ID), toDoc(r), dayKey(r.WorkerID, r.Date))
}

// Put: 同期用の upsert
func (s *Store) Put(ctx context.Context, r Record) error {
	return s.remote.Set(ctx, docstore.AttendancePath(r.WorkerID, r.ID), toDoc(r), dayKey(r.WorkerID, r.Date))
}

func (s *Store) SetExit(ctx context.Context, r Record, exit string) error {
	return s.remote.Update(ctx, docstore.AttendancePath(r.WorkerID, r.ID), map[string]any{"exitTime": exit})
}

// AddWorkedDay: users/{w} の統計をサーバ側加算で更新
func (s *Store) AddWorkedDay(ctx context.Context, workerID, date, now string) error {
	return s.remote.Increment(ctx, docstore.UserPath(workerID),
		map[string]decimal.Decimal{"stats.workedDays": decimal.NewFromInt(1)},
		map[string]any{"stats.lastAttendanceDate": date, "timestamps.lastActive": now},
	)
}

func (s *Store) query(ctx context.Context, workerID string, where ...docstore.Filter) ([]docstore.Snapshot, error) {
	return s.remote.Query(ctx, docstore.AttendanceCollection(workerID), docstore.Query{
		Where:   where,
		OrderBy: "date",
		Desc:    true,
	})
}

func (s *Store) ByDate(ctx context.Context, workerID, date string) ([]docstore.Snapshot, error) {
	return s.query(ctx, workerID, docstore.Where("date", docstore.OpEq, date))
}

func (s *Store) Between(ctx context.Context, workerID, from, to string) ([]docstore.Snapshot, error) {
	return s.query(ctx, workerID,
		docstore.Where("date", docstore.OpGte, from),
		docstore.Where("date", docstore.OpLte, to),
	)
}

func (s *Store) ByMonth(ctx context.Context, workerID, yearMonth string) ([]docstore.Snapshot, error) {
	return s.query(ctx, workerID, docstore.Where("yearMonth", docstore.OpEq, yearMonth))
}

// mergePending: リモートに未反映のローカル記録を足して日付降順に並べ直す
func mergePending(remote []Record, local []cache.AttendanceRecord) []Record {
	seen := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		seen[r.ID] = struct{}{}
	}
	out := remote
	for _, l := range local {
		if l.Synced {
			continue
		}
		if _, ok := seen[l.ID]; ok {
			continue
		}
		out = append(out, fromCache(l))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}
