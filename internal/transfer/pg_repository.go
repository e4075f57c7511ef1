package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanReferral(row pgx.Row) (*Referral, error) {
	var r Referral

	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.PatientName,
		&r.Diagnosis,
		&r.Recipient,
		&r.DocumentLocation,
		&r.MessageLink,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (r *PgRepository) InsertReferral(ctx context.Context, ref Referral) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO referrals (id, patient_id, patient_name, diagnosis, recipient, document_location, message_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ref.ID, ref.PatientID, ref.PatientName, ref.Diagnosis, ref.Recipient, ref.DocumentLocation, ref.MessageLink, ref.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}

	return nil
}

func (r *PgRepository) ListReferrals(ctx context.Context, limit int) ([]Referral, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, patient_name, diagnosis, recipient, document_location, message_link, created_at
		FROM referrals
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReferrals(rows)
}

func (r *PgRepository) ListReferralsForPatient(ctx context.Context, patientID string) ([]Referral, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, patient_name, diagnosis, recipient, document_location, message_link, created_at
		FROM referrals
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReferrals(rows)
}

func collectReferrals(rows pgx.Rows) ([]Referral, error) {
	var result []Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ref)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
