package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Proton-105/billsafe/internal/bill"
)

func (a *API) createBill(w http.ResponseWriter, r *http.Request) {
	var in bill.NewBill
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	created, err := a.deps.Bills.Create(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (a *API) ingestSMS(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}

	created, err := a.deps.Bills.IngestSMS(r.Context(), chi.URLParam(r, "id"), body.Message)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (a *API) listBills(w http.ResponseWriter, r *http.Request) {
	bills, err := a.deps.Bills.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(bills))
}

func (a *API) listActiveBills(w http.ResponseWriter, r *http.Request) {
	bills, err := a.deps.Bills.ListActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(bills))
}

func (a *API) getBill(w http.ResponseWriter, r *http.Request) {
	b, err := a.deps.Bills.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, b)
}

func (a *API) updateBill(w http.ResponseWriter, r *http.Request) {
	var patch bill.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		a.writeError(w, r, err)
		return
	}

	updated, err := a.deps.Bills.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (a *API) deleteBill(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Bills.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "Bill deleted successfully"})
}

func (a *API) markBillPaid(w http.ResponseWriter, r *http.Request) {
	paid, err := a.deps.Bills.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, paid)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
