package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scade330/clinic2-portal/internal/export"
	"github.com/scade330/clinic2-portal/internal/record"
)

// RecordFetcher is the slice of the upstream client the referral flow needs.
type RecordFetcher interface {
	Get(ctx context.Context, id string) (record.PatientRecord, error)
}

// Result is the outcome of one processed referral. Export and history
// failures do not abort the hand-off; they land in Warnings instead.
type Result struct {
	Referral Referral `json:"referral"`
	Warnings []string `json:"warnings,omitempty"`
}

type Service struct {
	records RecordFetcher
	sink    export.Sink
	repo    Repository
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(records RecordFetcher, sink export.Sink, repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		records: records,
		sink:    sink,
		repo:    repo,
		logger:  logger,
		now:     time.Now,
	}
}

// Process runs the referral hand-off for one patient: fetch the record,
// export the referral document, build the WhatsApp link and record the
// referral. Only a missing recipient or a failed fetch abort the flow.
func (s *Service) Process(ctx context.Context, patientID, recipient string) (Result, error) {
	if recipient == "" {
		return Result{}, ErrRecipientRequired
	}

	rec, err := s.records.Get(ctx, patientID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch record for referral: %w", err)
	}

	ref := Referral{
		ID:          uuid.New(),
		PatientID:   rec.ID,
		PatientName: rec.FullName(),
		Diagnosis:   rec.Diagnosis,
		Recipient:   recipient,
		MessageLink: DeepLink(recipient, ReferralMessage(rec)),
		CreatedAt:   s.now().UTC(),
	}

	var warnings []string

	name := fmt.Sprintf("Referral_%s.txt", rec.LastName)
	location, err := s.sink.Export(name, export.ReferralDocument(rec))
	if err != nil {
		s.logger.Warn("referral document export failed",
			zap.String("patient_id", rec.ID), zap.Error(err))
		warnings = append(warnings, "referral document was not exported")
	} else {
		ref.DocumentLocation = location
	}

	if err := s.repo.InsertReferral(ctx, ref); err != nil {
		s.logger.Warn("referral history insert failed",
			zap.String("patient_id", rec.ID), zap.Error(err))
		warnings = append(warnings, "referral was not recorded in history")
	}

	return Result{Referral: ref, Warnings: warnings}, nil
}

// History returns recent referrals, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]Referral, error) {
	return s.repo.ListReferrals(ctx, limit)
}

// HistoryForPatient returns the referrals sent for one patient, newest first.
func (s *Service) HistoryForPatient(ctx context.Context, patientID string) ([]Referral, error) {
	refs, err := s.repo.ListReferralsForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list referrals for patient %s: %w", patientID, err)
	}
	return refs, nil
}
