package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Proton-105/billsafe/internal/health"
	"github.com/Proton-105/billsafe/internal/jobs"
)

// requireToken admits requests carrying "Authorization: Bearer <token>".
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// enqueueSweep queues an immediate reminder sweep.
func (a *API) enqueueSweep(w http.ResponseWriter, r *http.Request) {
	info, err := a.deps.Jobs.EnqueueReminderSweep(r.Context(), jobs.TriggerManual, a.deps.SweepTimeout)
	if err != nil {
		if errors.Is(err, jobs.ErrSweepQueued) {
			writeMessage(w, http.StatusConflict, "A reminder sweep is already queued")
			return
		}
		a.writeError(w, r, err)
		return
	}

	a.log.InfoContext(r.Context(), "manual reminder sweep queued", slog.String("task_id", info.ID))
	writeData(w, http.StatusAccepted, map[string]string{"taskId": info.ID, "queue": info.Queue})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if a.deps.Health == nil {
		writeJSON(w, http.StatusOK, health.Report{Status: health.StatusOK})
		return
	}

	report := a.deps.Health.Check(r.Context())
	status := http.StatusOK
	if report.Status != health.StatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (a *API) livez(w http.ResponseWriter, r *http.Request) {
	if a.deps.Probes != nil {
		if err := a.deps.Probes.Liveness(r.Context()); err != nil {
			writeMessage(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": health.StatusOK})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if a.deps.Probes != nil {
		if err := a.deps.Probes.Readiness(r.Context()); err != nil {
			writeMessage(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": health.StatusOK})
}
