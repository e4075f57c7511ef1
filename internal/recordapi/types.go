package recordapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/scade330/clinic2-portal/internal/record"
)

var ErrRecordNotFound = errors.New("record not found")

// APIError is a non-2xx reply from the record API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("record api: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("record api: status=%d message=%s", e.StatusCode, e.Message)
}

// UpstreamMessage exposes the server-provided message for user-facing
// notifications.
func (e *APIError) UpstreamMessage() string { return e.Message }

func (e *APIError) Is(target error) bool {
	return target == ErrRecordNotFound && e.StatusCode == http.StatusNotFound
}

// LabImage is the acknowledgement for an uploaded lab result image.
type LabImage struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// wireRecord tolerates the legacy "_id" identifier some API variants emit.
type wireRecord struct {
	record.PatientRecord
	LegacyID string `json:"_id"`
}

func (w wireRecord) normalized() record.PatientRecord {
	rec := w.PatientRecord
	if rec.ID == "" {
		rec.ID = w.LegacyID
	}
	return rec
}

// recordEnvelope tolerates replies that wrap the record, e.g. {"patient": {...}}.
type recordEnvelope struct {
	wireRecord
	Patient *wireRecord `json:"patient"`
}

func (e recordEnvelope) record() record.PatientRecord {
	if e.Patient != nil {
		return e.Patient.normalized()
	}
	return e.wireRecord.normalized()
}

// parseMessage digs the human-readable message out of an error body. API
// variants use either "message" or "error".
func parseMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
