package api

import (
	"encoding/json"
	"net/http"

	"github.com/scade330/clinic2-portal/internal/record"
)

type OpenFormRequest struct {
	RecordID string `json:"recordId,omitempty"`
}

type FieldUpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type FormResponse struct {
	FormID       string                    `json:"formId"`
	Editing      bool                      `json:"editing"`
	Fields       map[string]string         `json:"fields"`
	Treatments   []record.TreatmentEntry   `json:"treatments"`
	Vaccinations []record.VaccinationInput `json:"vaccinations"`
}

type SubmitResponse struct {
	Message string                `json:"message"`
	Errors  record.Errors         `json:"errors,omitempty"`
	Record  *record.PatientRecord `json:"record,omitempty"`
	Created bool                  `json:"created"`
}

type PatientListResponse struct {
	Patients []record.PatientRecord `json:"patients"`
	Expanded string                 `json:"expanded,omitempty"`
}

type ExpandResponse struct {
	Expanded string `json:"expanded"`
}

type ReferralRequest struct {
	PatientID string `json:"patientId"`
	Recipient string `json:"recipient"`
}

type RecipientRequest struct {
	Number string `json:"number"`
}

type RecipientsResponse struct {
	Recipients []string `json:"recipients"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func formResponse(id string, f *record.Form) FormResponse {
	return FormResponse{
		FormID:       id,
		Editing:      f.Editing(),
		Fields:       f.Fields(),
		Treatments:   f.Treatments.Entries(),
		Vaccinations: f.Vaccinations.Entries(),
	}
}
