package controllers

import (
	"net/http"

	"gorm.io/gorm"
)

type HTTPController struct{ DB *gorm.DB }

func NewHTTPController(db *gorm.DB) *HTTPController {
	return &HTTPController{DB: db}
}

func (c *HTTPController) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// Health reports whether the database answers.
func (c *HTTPController) Health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := c.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
