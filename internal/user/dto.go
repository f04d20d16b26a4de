package user

import "time"

type CreateUserRequest struct {
	ID       string `json:"id,omitempty"` // 省略時は ULID
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
	Modality string `json:"modality" binding:"required"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
	Modality *string `json:"modality,omitempty"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type UserResponse struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Name               string    `json:"name"`
	Role               string    `json:"role"`
	Modality           string    `json:"modality"`
	Active             bool      `json:"active"`
	TotalEarnings      string    `json:"total_earnings"`
	MonthlyProduction  int64     `json:"monthly_production"`
	WorkedDays         int64     `json:"worked_days"`
	LastAttendanceDate string    `json:"last_attendance_date,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type RefreshReport struct {
	Updated int `json:"updated"`
	Invalid int `json:"invalid"`
}
