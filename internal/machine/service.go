package machine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"costura-backend/internal/cache"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/ids"
)

// Service: 機械はローカルキャッシュだけに持つ
type Service struct {
	local *cache.Store
	clock ids.Clock
	log   *zap.Logger
}

func NewService(local *cache.Store, clock ids.Clock, log *zap.Logger) *Service {
	return &Service{local: local, clock: clock, log: log.Named("machine")}
}

func (s *Service) Create(ctx context.Context, in CreateMachineRequest) (Machine, error) {
	name := strings.TrimSpace(in.Name)
	number := strings.TrimSpace(in.Number)
	if name == "" || number == "" || strings.TrimSpace(in.Type) == "" {
		return Machine{}, apierr.ErrInvalid("name, machine_number and type are required")
	}
	m := Machine{
		ID:          uuid.NewString(),
		Name:        name,
		Number:      number,
		Type:        strings.TrimSpace(in.Type),
		Description: in.Description,
		Status:      StatusOperational,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.local.InsertMachine(ctx, m.toCache()); err != nil {
		if errors.Is(err, cache.ErrDuplicate) {
			return Machine{}, apierr.ErrConflict("machine already exists")
		}
		s.log.Error("insert machine failed", zap.Error(err))
		return Machine{}, apierr.ErrInternal("create machine failed")
	}
	s.log.Info("machine created", zap.String("machine_id", m.ID), zap.String("number", m.Number))
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (Machine, error) {
	m, err := s.local.GetMachine(ctx, id)
	if errors.Is(err, cache.ErrNotFound) {
		return Machine{}, apierr.ErrNotFound("machine not found")
	}
	if err != nil {
		return Machine{}, apierr.ErrInternal("get machine failed")
	}
	return fromCache(m), nil
}

func (s *Service) List(ctx context.Context) ([]Machine, error) {
	return s.list(ctx, "")
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]Machine, error) {
	if !validStatus(status) {
		return nil, apierr.ErrInvalid("unknown machine status")
	}
	return s.list(ctx, status)
}

func (s *Service) list(ctx context.Context, status string) ([]Machine, error) {
	rows, err := s.local.ListMachines(ctx, status)
	if err != nil {
		s.log.Error("list machines failed", zap.Error(err))
		return nil, apierr.ErrInternal("list machines failed")
	}
	out := make([]Machine, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromCache(r))
	}
	return out, nil
}

// Update: 状態も直接変えられるが履歴は残らない
func (s *Service) Update(ctx context.Context, id string, in UpdateMachineRequest) (Machine, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return Machine{}, err
	}
	if in.Name != nil {
		if m.Name = strings.TrimSpace(*in.Name); m.Name == "" {
			return Machine{}, apierr.ErrInvalid("name must not be empty")
		}
	}
	if in.Number != nil {
		if m.Number = strings.TrimSpace(*in.Number); m.Number == "" {
			return Machine{}, apierr.ErrInvalid("machine_number must not be empty")
		}
	}
	if in.Type != nil {
		m.Type = strings.TrimSpace(*in.Type)
	}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if in.Status != nil {
		if !validStatus(*in.Status) {
			return Machine{}, apierr.ErrInvalid("unknown machine status")
		}
		m.Status = *in.Status
	}
	if err := s.local.UpdateMachine(ctx, m.toCache()); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Machine{}, apierr.ErrNotFound("machine not found")
		}
		return Machine{}, apierr.ErrInternal("update machine failed")
	}
	return m, nil
}

// Delete: 履歴ごと消す
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.local.DeleteMachine(ctx, id)
	if errors.Is(err, cache.ErrNotFound) {
		return apierr.ErrNotFound("machine not found")
	}
	if err != nil {
		s.log.Error("delete machine failed", zap.String("machine_id", id), zap.Error(err))
		return apierr.ErrInternal("delete machine failed")
	}
	s.log.Info("machine deleted", zap.String("machine_id", id))
	return nil
}

// History: machineID が空なら全機械分。新しい順
func (s *Service) History(ctx context.Context, machineID string) ([]HistoryEntry, error) {
	var (
		rows []cache.MachineHistory
		err  error
	)
	if machineID == "" {
		rows, err = s.local.AllHistory(ctx)
	} else {
		if _, err := s.Get(ctx, machineID); err != nil {
			return nil, err
		}
		rows, err = s.local.HistoryByMachine(ctx, machineID)
	}
	if err != nil {
		return nil, apierr.ErrInternal("read machine history failed")
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, historyFromCache(r))
	}
	return out, nil
}

// ReportProblem: MAINTENANCE にして PROBLEM_REPORTED を追記
func (s *Service) ReportProblem(ctx context.Context, id, description string) (Machine, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Machine{}, apierr.ErrInvalid("description is required")
	}
	return s.transition(ctx, id, func(m cache.Machine) (cache.Machine, cache.MachineHistory, error) {
		h := s.entry(m, HistoryProblemReported, description)
		m.Status = StatusMaintenance
		return m, h, nil
	})
}

// MarkAsRepaired: OPERATIONAL に戻し lastMaintenance を打刻、PROBLEM_SOLVED を追記
func (s *Service) MarkAsRepaired(ctx context.Context, id, solution, solvedBy string) (Machine, error) {
	solution = strings.TrimSpace(solution)
	if solution == "" {
		return Machine{}, apierr.ErrInvalid("solution is required")
	}
	return s.transition(ctx, id, func(m cache.Machine) (cache.Machine, cache.MachineHistory, error) {
		if m.Status == StatusOperational {
			return m, cache.MachineHistory{}, apierr.ErrConflict("machine is already operational")
		}
		h := s.entry(m, HistoryProblemSolved, solvedDescription)
		h.Solution = solution
		h.SolvedBy = solvedBy
		now := h.Date
		m.Status = StatusOperational
		m.LastMaintenance = &now
		return m, h, nil
	})
}

func (s *Service) transition(ctx context.Context, id string, mutate func(cache.Machine) (cache.Machine, cache.MachineHistory, error)) (Machine, error) {
	m, err := s.local.TransitionMachine(ctx, id, mutate)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Machine{}, apierr.ErrNotFound("machine not found")
		}
		var ae *apierr.APIError
		if errors.As(err, &ae) {
			return Machine{}, err
		}
		s.log.Error("machine transition failed", zap.String("machine_id", id), zap.Error(err))
		return Machine{}, apierr.ErrInternal("machine transition failed")
	}
	s.log.Info("machine status changed", zap.String("machine_id", id), zap.String("status", m.Status))
	return fromCache(m), nil
}

func (s *Service) entry(m cache.Machine, typ, description string) cache.MachineHistory {
	return cache.MachineHistory{
		ID:            uuid.NewString(),
		MachineID:     m.ID,
		MachineName:   m.Name,
		MachineNumber: m.Number,
		Type:          typ,
		Description:   description,
		Date:          s.clock.Now(),
	}
}
