package router

import (
	"net/http"

	"patchpilot/backend/app/controllers"
	"patchpilot/backend/app/middleware"
)

type Controllers struct {
	HTTP     *controllers.HTTPController
	Auth     *controllers.AuthController
	Devices  *controllers.DeviceController
	Commands *controllers.CommandController
	Actions  *controllers.ActionController
	Settings *controllers.SettingsController
	Logs     *controllers.LogController
}

func NewRouter(c Controllers, mw *middleware.Auth, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.WithRoute(pattern, h))
	}
	fn := func(f http.HandlerFunc) http.Handler { return f }

	// public
	handle("GET /ping", fn(c.HTTP.Ping))
	handle("GET /healthz", fn(c.HTTP.Health))
	handle("POST /api/login", fn(c.Auth.Login))
	if metrics != nil {
		handle("GET /metrics", metrics)
	}

	// agent
	handle("POST /api/register", fn(c.Devices.Register))
	handle("POST /api/devices/heartbeat", fn(c.Devices.Heartbeat))
	handle("POST /api/devices/{device_id}", mw.DeviceToken(fn(c.Devices.Update)))
	handle("GET /api/devices/{device_id}/commands/poll", mw.DeviceToken(fn(c.Commands.Poll)))
	handle("POST /api/devices/{device_id}/commands/{command_id}/result", mw.DeviceToken(fn(c.Commands.Result)))
	handle("POST /api/commands/{command_id}/result", mw.DeviceToken(fn(c.Commands.Result)))

	// operators
	handle("GET /api/devices", mw.RequireAuth(fn(c.Devices.List)))
	handle("GET /api/devices/{device_id}", mw.RequireAuth(fn(c.Devices.Get)))
	handle("POST /api/devices/{device_id}/approve", mw.RequireAdmin(fn(c.Devices.Approve)))
	handle("POST /api/actions/submit", mw.RequireAdmin(fn(c.Actions.Submit)))
	handle("GET /api/actions", mw.RequireAuth(fn(c.Actions.List)))
	handle("GET /api/actions/{id}/ttl", mw.RequireAuth(fn(c.Actions.GetTTL)))
	handle("POST /api/actions/{id}/ttl", mw.RequireAdmin(fn(c.Actions.SetTTL)))
	handle("POST /api/actions/{id}/cancel", mw.RequireAdmin(fn(c.Actions.Cancel)))
	handle("GET /api/actions/{id}/targets", mw.RequireAuth(fn(c.Actions.Targets)))
	handle("GET /api/history", mw.RequireAuth(fn(c.Logs.History)))
	handle("GET /api/audit", mw.RequireAdmin(fn(c.Logs.Audit)))
	handle("GET /api/settings", mw.RequireAuth(fn(c.Settings.Get)))
	handle("POST /api/settings", mw.RequireAdmin(fn(c.Settings.Update)))

	return mux
}
