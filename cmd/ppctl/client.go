package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"patchpilot/backend/app/dto"
	"patchpilot/backend/config"
	"patchpilot/network"
)

// Session is an authenticated connection to the admin API.
type Session struct {
	Server    string
	Token     string
	TokenPath string
	HTTP      *http.Client
}

func NewSession(server, tokenPath string) *Session {
	return &Session{
		Server:    strings.TrimRight(server, "/"),
		TokenPath: tokenPath,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

// DefaultTokenPath is where login stores the access token.
func DefaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "patchpilot", "token")
}

// LoadToken reads a previously saved token, if any.
func (s *Session) LoadToken() {
	if s.Token != "" || s.TokenPath == "" {
		return
	}
	if b, err := os.ReadFile(s.TokenPath); err == nil {
		s.Token = strings.TrimSpace(string(b))
	}
}

func (s *Session) saveToken() error {
	if s.TokenPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.TokenPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.TokenPath, []byte(s.Token+"\n"), 0o600)
}

func (s *Session) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := network.JSON.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.Server+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = network.JSON.Unmarshal(data, &e)
		if resp.StatusCode == http.StatusUnauthorized && e.Error == "" {
			e.Error = "not logged in (run ppctl login)"
		}
		return &network.StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return network.JSON.Unmarshal(data, out)
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	var tok dto.TokenResponse
	if err := s.do(ctx, http.MethodPost, "/api/login", dto.LoginRequest{Username: username, Password: password}, &tok); err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return errors.New("server returned an empty token")
	}
	s.Token = tok.AccessToken
	return s.saveToken()
}

func (s *Session) Devices(ctx context.Context) ([]dto.DeviceResponse, error) {
	var out []dto.DeviceResponse
	err := s.do(ctx, http.MethodGet, "/api/devices", nil, &out)
	return out, err
}

func (s *Session) Approve(ctx context.Context, deviceID string) error {
	return s.do(ctx, http.MethodPost, "/api/devices/"+deviceID+"/approve", nil, nil)
}

func (s *Session) Submit(ctx context.Context, req dto.SubmitActionRequest) (dto.SubmitActionResponse, error) {
	var out dto.SubmitActionResponse
	err := s.do(ctx, http.MethodPost, "/api/actions/submit", req, &out)
	return out, err
}

func (s *Session) Actions(ctx context.Context) ([]dto.ActionResponse, error) {
	var out []dto.ActionResponse
	err := s.do(ctx, http.MethodGet, "/api/actions", nil, &out)
	return out, err
}

func (s *Session) Targets(ctx context.Context, actionID uint) ([]dto.TargetResponse, error) {
	var out []dto.TargetResponse
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/api/actions/%d/targets", actionID), nil, &out)
	return out, err
}

func (s *Session) Cancel(ctx context.Context, actionID uint) error {
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/api/actions/%d/cancel", actionID), nil, nil)
}

func (s *Session) TTL(ctx context.Context, actionID uint) (dto.TTLResponse, error) {
	var out dto.TTLResponse
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/api/actions/%d/ttl", actionID), nil, &out)
	return out, err
}

func (s *Session) SetTTL(ctx context.Context, actionID uint, seconds int64) (dto.TTLResponse, error) {
	var out dto.TTLResponse
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/api/actions/%d/ttl", actionID), dto.TTLRequest{TTLSeconds: seconds}, &out)
	return out, err
}

func (s *Session) Settings(ctx context.Context) (config.Settings, error) {
	var out config.Settings
	err := s.do(ctx, http.MethodGet, "/api/settings", nil, &out)
	return out, err
}

// UpdateSettings posts a partial settings document.
func (s *Session) UpdateSettings(ctx context.Context, patch map[string]any) (config.Settings, error) {
	var out config.Settings
	err := s.do(ctx, http.MethodPost, "/api/settings", patch, &out)
	return out, err
}

func (s *Session) History(ctx context.Context, audit bool) ([]dto.LogResponse, error) {
	path := "/api/history"
	if audit {
		path = "/api/audit"
	}
	var out []dto.LogResponse
	err := s.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}
