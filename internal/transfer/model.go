// Package transfer implements the referral flow: render a referral
// document for a patient, export it, build the WhatsApp hand-off link and
// record the referral in the history table.
package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecipientRequired = errors.New("referral recipient is required")
	ErrReferralNotFound  = errors.New("referral not found")
)

// Referral is one processed hand-off, as stored in referral history.
type Referral struct {
	ID               uuid.UUID `json:"id"`
	PatientID        string    `json:"patientId"`
	PatientName      string    `json:"patientName"`
	Diagnosis        string    `json:"diagnosis"`
	Recipient        string    `json:"recipient"`
	DocumentLocation string    `json:"documentLocation"`
	MessageLink      string    `json:"messageLink"`
	CreatedAt        time.Time `json:"createdAt"`
}
