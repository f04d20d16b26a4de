package user

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
)

// リモート users/{id} の形
type basicInfoDoc struct {
	Name         string `json:"name" validate:"required"`
	Username     string `json:"username" validate:"required"`
	PasswordHash string `json:"passwordHash" validate:"required"`
	Role         string `json:"role" validate:"required,oneof=ADMIN WORKER"`
	Modality     string `json:"modality" validate:"required,oneof=DAILY_RATE PIECE_RATE"`
	IsActive     *bool  `json:"isActive" validate:"required"`
}

type statsDoc struct {
	TotalEarnings      decimal.Decimal `json:"totalEarnings"`
	MonthlyProduction  int64           `json:"monthlyProduction"`
	WorkedDays         int64           `json:"workedDays"`
	LastAttendanceDate string          `json:"lastAttendanceDate"`
}

type timestampsDoc struct {
	CreatedAt  string `json:"createdAt" validate:"required"`
	LastActive string `json:"lastActive"`
}

type userDoc struct {
	BasicInfo  basicInfoDoc  `json:"basicInfo"`
	Stats      statsDoc      `json:"stats"`
	Timestamps timestampsDoc `json:"timestamps"`
}

// 一意キー: username の重複登録を防ぐ
func usernameKey(username string) string { return "username@" + username }

func newUserDoc(u User) map[string]any {
	return map[string]any{
		"basicInfo": map[string]any{
			"name":         u.Name,
			"username":     u.Username,
			"passwordHash": u.PasswordHash,
			"role":         u.Role,
			"modality":     u.Modality,
			"isActive":     u.Active,
		},
		// increment 対象なので数値で持つ
		"stats": map[string]any{
			"totalEarnings":      json.Number("0"),
			"monthlyProduction":  json.Number("0"),
			"workedDays":         json.Number("0"),
			"lastAttendanceDate": "",
		},
		"timestamps": map[string]any{
			"createdAt":  cache.FormatTime(u.CreatedAt),
			"lastActive": cache.FormatTime(u.CreatedAt),
		},
	}
}

func decodeUser(snap docstore.Snapshot) (User, error) {
	var d userDoc
	if err := snap.Decode(&d); err != nil {
		return User{}, err
	}
	u := User{
		ID:           snap.ID,
		Username:     d.BasicInfo.Username,
		PasswordHash: d.BasicInfo.PasswordHash,
		Name:         d.BasicInfo.Name,
		Role:         d.BasicInfo.Role,
		Modality:     d.BasicInfo.Modality,
		Active:       *d.BasicInfo.IsActive,
		Stats: Stats{
			TotalEarnings:      d.Stats.TotalEarnings,
			MonthlyProduction:  d.Stats.MonthlyProduction,
			WorkedDays:         d.Stats.WorkedDays,
			LastAttendanceDate: d.Stats.LastAttendanceDate,
		},
	}
	u.CreatedAt, _ = time.Parse(cache.TimeLayout, d.Timestamps.CreatedAt)
	if d.Timestamps.LastActive != "" {
		u.LastActive, _ = time.Parse(cache.TimeLayout, d.Timestamps.LastActive)
	}
	return u, nil
}

// Store: リモート文書とローカルキャッシュの両方を扱う
type Store struct {
	remote docstore.Store
	local  *cache.Store
}

func NewStore(remote docstore.Store, local *cache.Store) *Store {
	return &Store{remote: remote, local: local}
}

func (s *Store) createRemote(ctx context.Context, u User) error {
	return s.remote.Create(ctx, docstore.UserPath(u.ID), newUserDoc(u), usernameKey(u.Username))
}

func (s *Store) getRemote(ctx context.Context, id string) (User, error) {
	snap, err := s.remote.Get(ctx, docstore.UserPath(id))
	if err != nil {
		return User{}, err
	}
	return decodeUser(snap)
}

func (s *Store) findRemoteByUsername(ctx context.Context, username string) ([]docstore.Snapshot, error) {
	return s.remote.Query(ctx, docstore.UsersCollection, docstore.Query{
		Where: []docstore.Filter{docstore.Where("basicInfo.username", docstore.OpEq, username)},
		Limit: 2,
	})
}

func (s *Store) updateRemote(ctx context.Context, id string, fields map[string]any) error {
	return s.remote.Update(ctx, docstore.UserPath(id), fields)
}

func (s *Store) listRemote(ctx context.Context) ([]docstore.Snapshot, error) {
	return s.remote.List(ctx, docstore.UsersCollection)
}
