package services

import (
	"patchpilot/backend/app/dto"
	"patchpilot/backend/app/repo"
)

const logPageSize = 500

type LogService struct{ logs *repo.LogRepository }

func NewLogService(logs *repo.LogRepository) *LogService { return &LogService{logs: logs} }

func (s *LogService) Audit() ([]dto.LogResponse, error) {
	rows, err := s.logs.ListAudit(logPageSize)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LogResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.LogResponse{ID: r.ID, Actor: r.Actor, Event: r.Event, Target: r.Target, Detail: r.Detail, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *LogService) History() ([]dto.LogResponse, error) {
	rows, err := s.logs.ListHistory(logPageSize)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LogResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.LogResponse{ID: r.ID, ActionID: r.ActionID, DeviceID: r.DeviceID, Actor: r.Actor, Event: r.Event, Detail: r.Detail, CreatedAt: r.CreatedAt})
	}
	return out, nil
}
