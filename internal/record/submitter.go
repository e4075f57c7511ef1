package record

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrSubmitInFlight = errors.New("a submission is already in flight")

// RecordWriter dispatches the serialized payload to the upstream record API.
type RecordWriter interface {
	CreateRecord(ctx context.Context, p Payload) (PatientRecord, error)
	UpdateRecord(ctx context.Context, id string, p Payload) (PatientRecord, error)
}

type SubmitState string

const (
	StateIdle       SubmitState = "idle"
	StateSubmitting SubmitState = "submitting"
)

// Result is the outcome of one submit attempt. Exactly one of Errors or
// Record is set on a completed run; Message is the user-facing notification.
type Result struct {
	Errors  Errors         `json:"errors,omitempty"`
	Record  *PatientRecord `json:"record,omitempty"`
	Created bool           `json:"created"`
	Message string         `json:"message"`
}

// Submitter coordinates the validate, serialize, submit, reset cycle for
// one form. At most one submission is in flight at a time, gated by a busy
// flag rather than a queue.
type Submitter struct {
	writer RecordWriter
	logger *zap.Logger

	mu   sync.Mutex
	busy bool
}

func NewSubmitter(writer RecordWriter, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{writer: writer, logger: logger}
}

func (s *Submitter) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return StateSubmitting
	}
	return StateIdle
}

// Submit validates the form, and when clean dispatches exactly one create
// or update call. Validation errors return immediately with no network
// dispatch and the form untouched. On success a create-mode form is reset
// to defaults; an edit-mode form is left for the caller to close. On
// failure all entered values are preserved so the user can resubmit.
func (s *Submitter) Submit(ctx context.Context, f *Form) (Result, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Result{}, ErrSubmitInFlight
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if errs := Validate(f); !errs.Valid() {
		return Result{Errors: errs, Message: "Please correct the highlighted fields"}, nil
	}

	payload, err := BuildPayload(f)
	if err != nil {
		s.logger.Warn("payload build failed", zap.Error(err))
		return Result{Message: err.Error()}, err
	}

	if f.Editing() {
		id := f.ID
		rec, err := s.writer.UpdateRecord(ctx, id, payload)
		if err != nil {
			s.logger.Warn("update dispatch failed", zap.String("record_id", id), zap.Error(err))
			return Result{Message: upstreamMessage(err, "Failed to update patient")}, err
		}
		s.logger.Info("record updated", zap.String("record_id", rec.ID))
		return Result{Record: &rec, Message: "Patient updated successfully!"}, nil
	}

	rec, err := s.writer.CreateRecord(ctx, payload)
	if err != nil {
		s.logger.Warn("create dispatch failed", zap.Error(err))
		return Result{Message: upstreamMessage(err, "Failed to create patient")}, err
	}
	f.Reset()
	s.logger.Info("record created", zap.String("record_id", rec.ID))
	return Result{Record: &rec, Created: true, Message: "Patient created successfully!"}, nil
}

// upstreamMessage prefers the server-provided message over the generic
// fallback string.
func upstreamMessage(err error, fallback string) string {
	var um interface{ UpstreamMessage() string }
	if errors.As(err, &um) {
		if msg := um.UpstreamMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
