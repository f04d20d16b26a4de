package machine

import "time"

type CreateMachineRequest struct {
	Name        string `json:"name" binding:"required"`
	Number      string `json:"machine_number" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Description string `json:"description"`
}

type UpdateMachineRequest struct {
	Name        *string `json:"name,omitempty"`
	Number      *string `json:"machine_number,omitempty"`
	Type        *string `json:"type,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" binding:"omitempty,oneof=OPERATIONAL MAINTENANCE BROKEN"`
}

type ReportProblemRequest struct {
	Description string `json:"description" binding:"required"`
}

type RepairRequest struct {
	Solution string `json:"solution" binding:"required"`
	SolvedBy string `json:"solved_by,omitempty"`
}

type MachineResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Number          string     `json:"machine_number"`
	Type            string     `json:"type"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	LastMaintenance *time.Time `json:"last_maintenance,omitempty"`
}

type HistoryResponse struct {
	ID            string    `json:"id"`
	MachineID     string    `json:"machine_id"`
	MachineName   string    `json:"machine_name"`
	MachineNumber string    `json:"machine_number"`
	Type          string    `json:"type"`
	Description   string    `json:"description"`
	SolvedBy      string    `json:"solved_by,omitempty"`
	Solution      string    `json:"solution,omitempty"`
	Date          time.Time `json:"date"`
}
