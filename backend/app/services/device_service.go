package services

import (
	"fmt"
	"time"

	"patchpilot/backend/app/dto"
	"patchpilot/backend/app/hub"
	jwtutil "patchpilot/backend/app/jwt"
	"patchpilot/backend/app/models"
	"patchpilot/backend/app/repo"
	"patchpilot/backend/global"
	"patchpilot/network"

	"github.com/google/uuid"
)

type DeviceService struct {
	devices  *repo.DeviceRepository
	logs     *repo.LogRepository
	settings *SettingsStore
	signer   *jwtutil.Signer
	hub      *hub.Hub
	Now      func() time.Time
}

func NewDeviceService(devices *repo.DeviceRepository, logs *repo.LogRepository, settings *SettingsStore, signer *jwtutil.Signer, h *hub.Hub) *DeviceService {
	return &DeviceService{devices: devices, logs: logs, settings: settings, signer: signer, hub: h, Now: time.Now}
}

func fromReport(r network.DeviceReport, at time.Time) models.Device {
	si := r.SystemInfo
	return models.Device{
		UUID:         r.DeviceID,
		Hostname:     si.Hostname,
		OSName:       si.OSName,
		OSVersion:    si.OSVersion,
		Arch:         si.Architecture,
		AgentVersion: r.AgentVersion,
		DeviceType:   r.DeviceType,
		DeviceModel:  r.DeviceModel,
		CPUCount:     si.CPUCount,
		RAMTotal:     si.RAMTotal,
		RAMUsed:      si.RAMUsed,
		Uptime:       si.Uptime,
		CPUUsage:     si.CPUUsage,
		LastCheckin:  &at,
	}
}

func statusOf(d *models.Device) string {
	if d.Approved {
		return "adopted"
	}
	return "pending"
}

func (s *DeviceService) answer(d *models.Device, issue bool) (network.DeviceStatus, error) {
	st := network.DeviceStatus{DeviceID: d.UUID, Adopted: d.Approved, Status: statusOf(d)}
	if !issue {
		return st, nil
	}
	tok, err := s.signer.SignDevice(d.UUID)
	if err != nil {
		return network.DeviceStatus{}, fmt.Errorf("sign device token: %w", err)
	}
	st.Token = tok
	return st, nil
}

// holds reports whether presented is a token issued to deviceID, expired or not.
func (s *DeviceService) holds(presented, deviceID string) bool {
	if presented == "" {
		return false
	}
	_, err := s.signer.ParseDevice(presented, deviceID)
	return err == nil
}

// Register creates or refreshes a device. A missing id is assigned here.
// A device token is issued when the device is created, or when the caller
// presents a token previously issued for that id. Re-registering a known id
// without one updates its facts but yields no token, and is refused outright
// while device tokens are required.
func (s *DeviceService) Register(report network.DeviceReport, presented string) (network.DeviceStatus, error) {
	if report.DeviceID == "" {
		report.DeviceID = uuid.NewString()
	} else if _, err := uuid.Parse(report.DeviceID); err != nil {
		return network.DeviceStatus{}, ErrInvalidDeviceID
	}
	settings := s.settings.Snapshot()
	held := s.holds(presented, report.DeviceID)
	if !held && settings.RequireDeviceToken {
		if _, err := s.devices.FindByUUID(report.DeviceID); err == nil {
			return network.DeviceStatus{}, ErrDeviceTokenNeeded
		}
	}
	now := s.Now().UTC()
	d := fromReport(report, now)
	d.Approved = settings.AutoApproveDevices
	created, err := s.devices.Upsert(&d)
	if err != nil {
		return network.DeviceStatus{}, err
	}
	if created {
		e := repo.Entry{Actor: "device:" + d.UUID, Event: "device.register", Target: "device:" + d.UUID, DeviceID: d.UUID,
			Detail: fmt.Sprintf("hostname=%s approved=%t", d.Hostname, d.Approved)}
		if err := s.logs.Record(e, now); err != nil {
			global.Logger.Error().Err(err).Str("device_id", d.UUID).Msg("record registration")
		}
		global.Logger.Info().Str("device_id", d.UUID).Bool("approved", d.Approved).Msg("device registered")
	} else if !held {
		global.Logger.Warn().Str("device_id", d.UUID).Msg("re-registration without device token, no token issued")
	}
	return s.answer(&d, created || held)
}

// Heartbeat refreshes facts and last_checkin of a known device. The answer
// carries a renewed token only for a caller holding one issued to the device.
func (s *DeviceService) Heartbeat(report network.DeviceReport, presented string) (network.DeviceStatus, error) {
	if report.DeviceID == "" {
		return network.DeviceStatus{}, ErrInvalidDeviceID
	}
	if _, err := s.devices.FindByUUID(report.DeviceID); err != nil {
		return network.DeviceStatus{}, err
	}
	d := fromReport(report, s.Now().UTC())
	if _, err := s.devices.Upsert(&d); err != nil {
		return network.DeviceStatus{}, err
	}
	return s.answer(&d, s.holds(presented, d.UUID))
}

func (s *DeviceService) Approve(deviceID, actor string) error {
	e := repo.Entry{Actor: actor, Event: "device.approve", Target: "device:" + deviceID, DeviceID: deviceID}
	changed, err := s.devices.Approve(deviceID, e, s.Now().UTC())
	if err != nil {
		return err
	}
	if changed {
		global.Logger.Info().Str("device_id", deviceID).Str("actor", actor).Msg("device approved")
	}
	return nil
}

func (s *DeviceService) toResponse(d *models.Device) dto.DeviceResponse {
	return dto.DeviceResponse{
		DeviceID:     d.UUID,
		Name:         d.Name,
		Hostname:     d.Hostname,
		OSName:       d.OSName,
		OSVersion:    d.OSVersion,
		Arch:         d.Arch,
		AgentVersion: d.AgentVersion,
		Approved:     d.Approved,
		Online:       s.hub != nil && s.hub.IsOnline(d.UUID),
		LastCheckin:  d.LastCheckin,
		CPUCount:     d.CPUCount,
		RAMTotal:     d.RAMTotal,
		RAMUsed:      d.RAMUsed,
		CPUUsage:     d.CPUUsage,
		Uptime:       d.Uptime,
	}
}

func (s *DeviceService) Get(deviceID string) (dto.DeviceResponse, error) {
	d, err := s.devices.FindByUUID(deviceID)
	if err != nil {
		return dto.DeviceResponse{}, err
	}
	return s.toResponse(d), nil
}

func (s *DeviceService) List() ([]dto.DeviceResponse, error) {
	devices, err := s.devices.ListAll()
	if err != nil {
		return nil, err
	}
	out := make([]dto.DeviceResponse, 0, len(devices))
	for i := range devices {
		out = append(out, s.toResponse(&devices[i]))
	}
	return out, nil
}
