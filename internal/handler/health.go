package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// HandleHealthz returns a liveness handler that reports how long the
// process has been serving since started.
func HandleHealthz(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status: "ok",
			Uptime: time.Since(started).Truncate(time.Second).String(),
		})
	}
}
