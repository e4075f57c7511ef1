package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scade330/clinic2-portal/internal/recordapi"
)

// PrescriptionsAPI is the slice of the upstream client the prescription
// and pharmacy sale handlers relay through.
type PrescriptionsAPI interface {
	ListPrescriptions(ctx context.Context) (json.RawMessage, error)
	GetPrescription(ctx context.Context, id string) (json.RawMessage, error)
	PatientPrescriptions(ctx context.Context, patientID string) (json.RawMessage, error)
	CreatePrescription(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	UpdatePrescription(ctx context.Context, id string, body json.RawMessage) (json.RawMessage, error)
	DeletePrescription(ctx context.Context, id string) (json.RawMessage, error)
	ListPharmacyItems(ctx context.Context) ([]recordapi.PharmacyItem, error)
	RecordSale(ctx context.Context, req recordapi.SaleRequest) (json.RawMessage, error)
}

const maxRelayBody = 1 << 20 // 1MB

// writeRaw emits an upstream JSON payload without re-encoding it.
func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	_, _ = w.Write(raw)
}

// readRelayBody reads a request body destined for the upstream, rejecting
// anything that is not valid JSON before it leaves the portal.
func readRelayBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRelayBody))
	if err != nil || len(raw) == 0 || !json.Valid(raw) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return nil, false
	}
	return raw, true
}

func listPrescriptionsHandler(api PrescriptionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := api.ListPrescriptions(r.Context())
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, raw)
	}
}

func getPrescriptionHandler(api PrescriptionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := api.GetPrescription(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, raw)
	}
}

func patientPrescriptionsHandler(api PrescriptionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := api.PatientPrescriptions(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, raw)
	}
}

func createPrescriptionHandler(api PrescriptionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readRelayBody(w, r)
		if !ok {
			return
		}
		raw, err := api.CreatePrescription(r.Context(), body)
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeRaw(w, http.StatusCreated, raw)
	}
}

func updatePrescriptionHandler(api PrescriptionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readRelayBody(w, r)
		if !ok {
			return
		}
		raw, err := api.UpdatePrescription(r.Context(), chi.URLParam(r, "id"), body)
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, raw)
	}
}

func deletePrescriptionHandler(api PrescriptionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := api.DeletePrescription(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, raw)
	}
}

func listPharmacyItemsHandler(api PrescriptionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := api.ListPharmacyItems(r.Context())
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func recordSaleHandler(api PrescriptionsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordapi.SaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.PharmacyItem == "" {
			writeError(w, http.StatusBadRequest, "pharmacy_item_required", "select a drug to sell")
			return
		}
		if req.QuantitySold <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be greater than 0")
			return
		}

		raw, err := api.RecordSale(r.Context(), req)
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeRaw(w, http.StatusCreated, raw)
	}
}
