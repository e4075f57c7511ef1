package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scade330/clinic2-portal/internal/observability/metrics"
	"github.com/scade330/clinic2-portal/internal/transfer"
)

func processReferralHandler(svc *transfer.Service, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReferralRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		result, err := svc.Process(r.Context(), req.PatientID, req.Recipient)
		switch {
		case err == nil:
			m.ReferralsProcessed.Inc()
			writeJSON(w, http.StatusCreated, result)
		case errors.Is(err, transfer.ErrRecipientRequired):
			writeError(w, http.StatusBadRequest, "recipient_required", "select a recipient number")
		default:
			handleUpstreamError(w, err)
		}
	}
}

func listReferralsHandler(svc *transfer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		referrals, err := svc.History(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
			return
		}
		if referrals == nil {
			referrals = []transfer.Referral{}
		}
		writeJSON(w, http.StatusOK, referrals)
	}
}

func patientReferralsHandler(svc *transfer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		referrals, err := svc.HistoryForPatient(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
			return
		}
		if referrals == nil {
			referrals = []transfer.Referral{}
		}
		writeJSON(w, http.StatusOK, referrals)
	}
}

func listRecipientsHandler(store transfer.RecipientStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		numbers, err := store.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "recipients_unavailable", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, RecipientsResponse{Recipients: numbers})
	}
}

func addRecipientHandler(store transfer.RecipientStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecipientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		numbers, err := store.Add(r.Context(), req.Number)
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, RecipientsResponse{Recipients: numbers})
		case errors.Is(err, transfer.ErrRecipientRequired):
			writeError(w, http.StatusBadRequest, "number_required", "a phone number is required")
		default:
			writeError(w, http.StatusInternalServerError, "recipients_unavailable", err.Error())
		}
	}
}
