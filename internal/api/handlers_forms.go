package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scade330/clinic2-portal/internal/forms"
	"github.com/scade330/clinic2-portal/internal/observability/metrics"
	"github.com/scade330/clinic2-portal/internal/record"
	"github.com/scade330/clinic2-portal/internal/recordapi"
)

func openFormHandler(mgr *forms.Manager, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenFormRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if id := r.URL.Query().Get("patient_id"); id != "" {
			req.RecordID = id
		}

		session, err := mgr.Open(r.Context(), req.RecordID)
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		m.FormSessionsActive.Set(float64(mgr.Len()))

		writeJSON(w, http.StatusCreated, formResponse(session.ID, session.Form))
	}
}

func getFormHandler(mgr *forms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formID")

		var resp FormResponse
		err := mgr.Do(formID, func(f *record.Form, _ *record.Submitter) error {
			resp = formResponse(formID, f)
			return nil
		})
		if err != nil {
			handleFormError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func setFieldHandler(mgr *forms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formID")

		var req FieldUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var resp FormResponse
		err := mgr.Do(formID, func(f *record.Form, _ *record.Submitter) error {
			if err := f.SetField(req.Field, req.Value); err != nil {
				return err
			}
			resp = formResponse(formID, f)
			return nil
		})
		if err != nil {
			handleFormError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// entryOpHandler covers add, update and remove for one entry list.
func entryOpHandler(mgr *forms.Manager, pick func(f *record.Form) interface {
	Add()
	Remove(int)
	UpdateField(int, string, string)
}, op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formID")

		index := -1
		if raw := chi.URLParam(r, "index"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_index", "index must be an integer")
				return
			}
			index = n
		}

		var req FieldUpdateRequest
		if op == "update" {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		var resp FormResponse
		err := mgr.Do(formID, func(f *record.Form, _ *record.Submitter) error {
			list := pick(f)
			switch op {
			case "add":
				list.Add()
			case "remove":
				list.Remove(index)
			case "update":
				list.UpdateField(index, req.Field, req.Value)
			}
			resp = formResponse(formID, f)
			return nil
		})
		if err != nil {
			handleFormError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func pickTreatments(f *record.Form) interface {
	Add()
	Remove(int)
	UpdateField(int, string, string)
} {
	return &f.Treatments
}

func pickVaccinations(f *record.Form) interface {
	Add()
	Remove(int)
	UpdateField(int, string, string)
} {
	return &f.Vaccinations
}

func submitFormHandler(mgr *forms.Manager, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formID")

		var result record.Result
		var submitErr error
		err := mgr.Do(formID, func(f *record.Form, sub *record.Submitter) error {
			result, submitErr = sub.Submit(r.Context(), f)
			return nil
		})
		if err != nil {
			handleFormError(w, err)
			return
		}

		if len(result.Errors) > 0 {
			m.SubmissionsTotal.WithLabelValues("validation_failed").Inc()
			writeJSON(w, http.StatusUnprocessableEntity, SubmitResponse{
				Message: result.Message,
				Errors:  result.Errors,
			})
			return
		}

		if submitErr != nil {
			if errors.Is(submitErr, record.ErrSubmitInFlight) {
				writeError(w, http.StatusConflict, "submit_in_flight", "a submission is already in progress")
				return
			}
			m.SubmissionsTotal.WithLabelValues("failed").Inc()
			writeJSON(w, http.StatusBadGateway, SubmitResponse{Message: result.Message})
			return
		}

		m.SubmissionsTotal.WithLabelValues("ok").Inc()
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, SubmitResponse{
			Message: result.Message,
			Record:  result.Record,
			Created: result.Created,
		})
	}
}

func discardFormHandler(mgr *forms.Manager, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr.Discard(chi.URLParam(r, "formID"))
		m.FormSessionsActive.Set(float64(mgr.Len()))
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleFormError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, forms.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "form_not_found", "form session expired or never existed")
	case errors.Is(err, record.ErrUnknownField):
		writeError(w, http.StatusBadRequest, "unknown_field", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *recordapi.APIError
	switch {
	case errors.Is(err, recordapi.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, "record_service_error", apiErr.Message)
	default:
		writeError(w, http.StatusBadGateway, "record_service_unavailable", err.Error())
	}
}
