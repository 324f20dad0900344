package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Proton-105/billsafe/internal/subscription"
)

func (a *API) createSubscription(w http.ResponseWriter, r *http.Request) {
	var in subscription.Input
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	created, err := a.deps.Subscriptions.Create(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (a *API) listActiveSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := a.deps.Subscriptions.ListActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(subs))
}

func (a *API) listUnusedSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := a.deps.Subscriptions.ListUnused(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(subs))
}

func (a *API) updateSubscription(w http.ResponseWriter, r *http.Request) {
	var patch subscription.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		a.writeError(w, r, err)
		return
	}

	updated, err := a.deps.Subscriptions.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (a *API) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	cancelled, err := a.deps.Subscriptions.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cancelled)
}
