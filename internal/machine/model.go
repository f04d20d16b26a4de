package machine

import (
	"time"

	"costura-backend/internal/cache"
)

const (
	StatusOperational = "OPERATIONAL"
	StatusMaintenance = "MAINTENANCE"
	StatusBroken      = "BROKEN"
)

const (
	HistoryProblemReported = "PROBLEM_REPORTED"
	HistoryProblemSolved   = "PROBLEM_SOLVED"
)

// 修理完了時の定型文
const solvedDescription = "Problema solucionado"

type Machine struct {
	ID              string
	Name            string
	Number          string
	Type            string
	Description     string
	Status          string
	CreatedAt       time.Time
	LastMaintenance *time.Time
}

// HistoryEntry: 追記のみ。機械名と番号は記録時点の値
type HistoryEntry struct {
	ID            string
	MachineID     string
	MachineName   string
	MachineNumber string
	Type          string
	Description   string
	SolvedBy      string
	Solution      string
	Date          time.Time
}

func validStatus(s string) bool {
	switch s {
	case StatusOperational, StatusMaintenance, StatusBroken:
		return true
	}
	return false
}

func fromCache(m cache.Machine) Machine {
	return Machine(m)
}

func (m Machine) toCache() cache.Machine {
	return cache.Machine(m)
}

func historyFromCache(h cache.MachineHistory) HistoryEntry {
	return HistoryEntry(h)
}

func (m Machine) toDTO() MachineResponse {
	return MachineResponse{
		ID:              m.ID,
		Name:            m.Name,
		Number:          m.Number,
		Type:            m.Type,
		Description:     m.Description,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
		LastMaintenance: m.LastMaintenance,
	}
}

func (h HistoryEntry) toDTO() HistoryResponse {
	return HistoryResponse{
		ID:            h.ID,
		MachineID:     h.MachineID,
		MachineName:   h.MachineName,
		MachineNumber: h.MachineNumber,
		Type:          h.Type,
		Description:   h.Description,
		SolvedBy:      h.SolvedBy,
		Solution:      h.Solution,
		Date:          h.Date,
	}
}
