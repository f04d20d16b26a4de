package scan

import "costura-backend/internal/attendance"

type ScanRequest struct {
	Payload  string `json:"payload" binding:"required"`
	WorkerID string `json:"worker_id,omitempty"` // ADMIN のみ
}

type ScanResponse struct {
	Action     Action                    `json:"action"`
	LocationID string                    `json:"location_id"`
	Record     attendance.RecordResponse `json:"record"`
}
