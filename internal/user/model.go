package user

import (
	"time"

	"github.com/shopspring/decimal"

	"costura-backend/internal/cache"
)

const (
	RoleAdmin  = "ADMIN"
	RoleWorker = "WORKER"

	ModalityDailyRate = "DAILY_RATE"
	ModalityPieceRate = "PIECE_RATE"
)

type Stats struct {
	TotalEarnings      decimal.Decimal
	MonthlyProduction  int64
	WorkedDays         int64
	LastAttendanceDate string
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Name         string
	Role         string
	Modality     string
	Active       bool
	Stats        Stats
	CreatedAt    time.Time
	LastActive   time.Time
}

func fromCache(c cache.User) User {
	return User{
		ID:           c.ID,
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		Name:         c.Name,
		Role:         c.Role,
		Modality:     c.Modality,
		Active:       c.Active,
		Stats: Stats{
			TotalEarnings:      c.TotalEarnings,
			MonthlyProduction:  c.MonthlyProduction,
			WorkedDays:         c.WorkedDays,
			LastAttendanceDate: c.LastAttendanceDate,
		},
		CreatedAt: c.CreatedAt,
	}
}

func (u User) toCache(now time.Time) cache.User {
	return cache.User{
		ID:                 u.ID,
		Username:           u.Username,
		PasswordHash:       u.PasswordHash,
		Name:               u.Name,
		Role:               u.Role,
		Modality:           u.Modality,
		Active:             u.Active,
		TotalEarnings:      u.Stats.TotalEarnings,
		MonthlyProduction:  u.Stats.MonthlyProduction,
		WorkedDays:         u.Stats.WorkedDays,
		LastAttendanceDate: u.Stats.LastAttendanceDate,
		CreatedAt:          u.CreatedAt,
		LastSync:           now,
	}
}

func (u User) toDTO() UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Username:           u.Username,
		Name:               u.Name,
		Role:               u.Role,
		Modality:           u.Modality,
		Active:             u.Active,
		TotalEarnings:      u.Stats.TotalEarnings.StringFixed(2),
		MonthlyProduction:  u.Stats.MonthlyProduction,
		WorkedDays:         u.Stats.WorkedDays,
		LastAttendanceDate: u.Stats.LastAttendanceDate,
		CreatedAt:          u.CreatedAt,
	}
}
