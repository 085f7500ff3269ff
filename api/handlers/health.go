package handlers

import (
	"net/http"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := a.swarm.Health(r.Context())
	status := http.StatusOK
	if !h.Healthy {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, h)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	st, err := a.swarm.Status(r.Context(), owner)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}
	WriteSuccess(w, st)
}
