package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Proton-105/billsafe/internal/domain"
	"github.com/Proton-105/billsafe/internal/user"
)

// userView exposes whether a push token is registered, never the token.
type userView struct {
	*domain.User
	HasPushToken bool `json:"hasFcmToken"`
}

func viewUser(u *domain.User) userView {
	return userView{User: u, HasPushToken: u.HasPushToken()}
}

func (a *API) upsertUser(w http.ResponseWriter, r *http.Request) {
	var in user.UpsertInput
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	u, err := a.deps.Users.Upsert(r.Context(), chi.URLParam(r, "uid"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, viewUser(u))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.deps.Users.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, viewUser(u))
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.deps.Bills.Stats(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (a *API) setNotifications(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	if body.Enabled == nil {
		writeMessage(w, http.StatusBadRequest, "enabled is required")
		return
	}

	u, err := a.deps.Users.SetNotifications(r.Context(), chi.URLParam(r, "uid"), *body.Enabled)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, viewUser(u))
}
