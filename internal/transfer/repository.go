package transfer

import "context"

// Repository persists referral history.
type Repository interface {
	InsertReferral(ctx context.Context, ref Referral) error
	ListReferrals(ctx context.Context, limit int) ([]Referral, error)
	ListReferralsForPatient(ctx context.Context, patientID string) ([]Referral, error)
}
