package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scade330/clinic2-portal/internal/directory"
	"github.com/scade330/clinic2-portal/internal/export"
	"github.com/scade330/clinic2-portal/internal/record"
	"github.com/scade330/clinic2-portal/internal/recordapi"
)

// RecordsAPI is the slice of the upstream client the patient handlers use
// beyond what the directory view already covers.
type RecordsAPI interface {
	Get(ctx context.Context, id string) (record.PatientRecord, error)
	UploadLabResult(ctx context.Context, id, filename string, file io.Reader) (recordapi.LabImage, error)
	DeleteLabResult(ctx context.Context, id, imageID string) error
	AddTreatment(ctx context.Context, id string, t record.TreatmentEntry) error
	DeleteTreatment(ctx context.Context, id string, index int) error
	AddVaccination(ctx context.Context, id string, v record.VaccinationEntry) error
	DeleteVaccination(ctx context.Context, id string, index int) error
}

func listPatientsHandler(view *directory.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := view.Ensure(r.Context()); err != nil {
			handleUpstreamError(w, err)
			return
		}

		patients := view.Records(r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, PatientListResponse{
			Patients: patients,
			Expanded: view.Expanded(),
		})
	}
}

func reloadPatientsHandler(view *directory.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := view.Load(r.Context()); err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PatientListResponse{Patients: view.Records("")})
	}
}

func getPatientHandler(view *directory.View, records RecordsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if rec, ok := view.Find(id); ok {
			writeJSON(w, http.StatusOK, rec)
			return
		}

		rec, err := records.Get(r.Context(), id)
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func expandPatientHandler(view *directory.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ExpandResponse{
			Expanded: view.Toggle(chi.URLParam(r, "id")),
		})
	}
}

func deletePatientHandler(view *directory.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		confirmed := r.URL.Query().Get("confirm") == "true"

		err := view.Delete(r.Context(), id, confirmed)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, directory.ErrConfirmationRequired):
			writeError(w, http.StatusBadRequest, "confirmation_required", "pass confirm=true to delete")
		case errors.Is(err, directory.ErrDeleteInFlight):
			writeError(w, http.StatusConflict, "delete_in_flight", "a deletion is already in progress")
		default:
			handleUpstreamError(w, err)
		}
	}
}

func exportCSVHandler(view *directory.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := view.Ensure(r.Context()); err != nil {
			handleUpstreamError(w, err)
			return
		}

		out, err := export.CSV(view.Records(r.URL.Query().Get("q")))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "export_failed", err.Error())
			return
		}

		name := fmt.Sprintf("patients_%s.csv", time.Now().Format("2006-01-02"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename="+name)
		_, _ = w.Write(out)
	}
}

func listDocumentHandler(view *directory.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := view.Ensure(r.Context()); err != nil {
			handleUpstreamError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(export.ListDocument(view.Records(r.URL.Query().Get("q"))))
	}
}

func patientDocumentHandler(view *directory.View, records RecordsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, ok := view.Find(id)
		if !ok {
			var err error
			rec, err = records.Get(r.Context(), id)
			if err != nil {
				handleUpstreamError(w, err)
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(export.PrintDocument(rec))
	}
}

func uploadLabResultHandler(records RecordsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_image", "multipart field 'image' is required")
			return
		}
		defer file.Close()

		img, err := records.UploadLabResult(r.Context(), id, header.Filename, file)
		if err != nil {
			handleUpstreamError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, img)
	}
}

func deleteLabResultHandler(records RecordsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		imageID := chi.URLParam(r, "imageID")

		if err := records.DeleteLabResult(r.Context(), id, imageID); err != nil {
			handleUpstreamError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addTreatmentHandler(records RecordsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var entry record.TreatmentEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := records.AddTreatment(r.Context(), chi.URLParam(r, "id"), entry); err != nil {
			handleUpstreamError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func deleteTreatmentHandler(records RecordsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_index", "index must be an integer")
			return
		}

		if err := records.DeleteTreatment(r.Context(), chi.URLParam(r, "id"), index); err != nil {
			handleUpstreamError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addVaccinationHandler(records RecordsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var entry record.VaccinationEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := records.AddVaccination(r.Context(), chi.URLParam(r, "id"), entry); err != nil {
			handleUpstreamError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func deleteVaccinationHandler(records RecordsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_index", "index must be an integer")
			return
		}

		if err := records.DeleteVaccination(r.Context(), chi.URLParam(r, "id"), index); err != nil {
			handleUpstreamError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
