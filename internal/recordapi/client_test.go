package recordapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/scade330/clinic2-portal/internal/observability/metrics"
	"github.com/scade330/clinic2-portal/internal/record"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c, err := NewClient(Config{BaseURL: ts.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c, ts
}

func TestClient_List_BareArray(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/records" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"a","firstName":"Amina"},{"_id":"b","firstName":"Omar"}]`))
	}))

	records, err := c.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "a" || records[1].ID != "b" {
		t.Fatalf("identifier normalization failed: %+v", records)
	}
}

func TestClient_List_Envelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"patients":[{"id":"a","firstName":"Amina"}]}`))
	}))

	records, err := c.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].FirstName != "Amina" {
		t.Fatalf("envelope decode failed: %+v", records)
	}
}

func TestClient_Get_NotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Patient not found"}`))
	}))

	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.UpstreamMessage() != "Patient not found" {
		t.Fatalf("server message not surfaced: %v", err)
	}
}

func TestClient_Create_PatientEnvelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/records" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var p record.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if p.NextAppointment != nil {
			t.Errorf("expected null nextAppointment, got %v", *p.NextAppointment)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"patient":{"_id":"new-1","firstName":"` + p.FirstName + `"}}`))
	}))

	rec, err := c.CreateRecord(context.Background(), record.Payload{FirstName: "Amina"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "new-1" || rec.FirstName != "Amina" {
		t.Fatalf("create reply not decoded: %+v", rec)
	}
}

func TestClient_Update_UsesPut(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{"id":"rec-1"}`))
	}))

	if _, err := c.UpdateRecord(context.Background(), "rec-1", record.Payload{}); err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPut || gotPath != "/records/rec-1" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
}

func TestClient_UploadLabResult_Multipart(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("expected multipart content type, got %q", r.Header.Get("Content-Type"))
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "xray.png" {
			t.Errorf("filename = %q", header.Filename)
		}
		_, _ = w.Write([]byte(`{"id":"img-1"}`))
	}))

	img, err := c.UploadLabResult(context.Background(), "rec-1", "xray.png", strings.NewReader("fake-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if img.ID != "img-1" {
		t.Fatalf("upload ack not decoded: %+v", img)
	}
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 5; i++ {
		if _, err := c.List(context.Background()); err == nil {
			t.Fatal("expected failure")
		}
	}
	hitsBefore := hits
	if _, err := c.List(context.Background()); err == nil {
		t.Fatal("expected open-circuit failure")
	}
	if hits != hitsBefore {
		t.Fatalf("open breaker must fail fast without contacting upstream (hits %d -> %d)", hitsBefore, hits)
	}
}

func TestClient_PrescriptionEnvelopeUnwrapped(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prescriptions":
			_, _ = w.Write([]byte(`{"data":[{"_id":"rx-1","medication":"Amoxicillin"}]}`))
		case "/pharmacy-items":
			_, _ = w.Write([]byte(`[{"_id":"drug-1","itemName":"Paracetamol","quantityInStock":4}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	raw, err := c.ListPrescriptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `[{"_id":"rx-1","medication":"Amoxicillin"}]` {
		t.Fatalf("data envelope not unwrapped: %s", raw)
	}

	// Stock endpoints without the envelope decode as-is.
	items, err := c.ListPharmacyItems(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].QuantityInStock != 4 {
		t.Fatalf("pharmacy stock not decoded: %+v", items)
	}
}

func TestClient_ReportsFailuresAndBreakerState(t *testing.T) {
	m := metrics.New()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(Config{BaseURL: ts.URL, Metrics: m}, nil)
	if err != nil {
		t.Fatal(err)
	}

	state := m.BreakerState.WithLabelValues("record-api")
	if got := testutil.ToFloat64(state); got != 0 {
		t.Fatalf("breaker gauge must start closed, got %v", got)
	}

	for i := 0; i < 5; i++ {
		if _, err := c.List(context.Background()); err == nil {
			t.Fatal("expected failure")
		}
	}

	if got := testutil.ToFloat64(m.UpstreamFailures); got != 5 {
		t.Fatalf("expected 5 upstream failures counted, got %v", got)
	}
	if got := testutil.ToFloat64(state); got != 1 {
		t.Fatalf("breaker gauge must report open after consecutive failures, got %v", got)
	}
}

func TestClient_BadRequestDoesNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad payload"}`))
	}))

	for i := 0; i < 10; i++ {
		_, err := c.CreateRecord(context.Background(), record.Payload{})
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
			t.Fatalf("iteration %d: expected APIError 400, got %v", i, err)
		}
	}
}
