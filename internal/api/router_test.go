package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scade330/clinic2-portal/internal/directory"
	"github.com/scade330/clinic2-portal/internal/export"
	"github.com/scade330/clinic2-portal/internal/forms"
	"github.com/scade330/clinic2-portal/internal/observability/metrics"
	"github.com/scade330/clinic2-portal/internal/record"
	"github.com/scade330/clinic2-portal/internal/recordapi"
	"github.com/scade330/clinic2-portal/internal/transfer"
)

// testMetrics is shared so prometheus registration happens once per process.
var testMetrics = metrics.New()

// fakeRecordService is an in-memory stand-in for the patient record API,
// including its prescription and pharmacy sale endpoints.
type fakeRecordService struct {
	mu            sync.Mutex
	nextID        int
	records       map[string]record.PatientRecord
	nextRx        int
	prescriptions map[string]map[string]any
	stock         []recordapi.PharmacyItem
}

func newFakeRecordService() *fakeRecordService {
	return &fakeRecordService{
		nextID:        1,
		records:       make(map[string]record.PatientRecord),
		nextRx:        1,
		prescriptions: make(map[string]map[string]any),
		stock: []recordapi.PharmacyItem{
			{ID: "drug-1", ItemName: "Paracetamol", QuantityInStock: 10},
		},
	}
}

type wirePatient struct {
	record.PatientRecord
	LegacyID string `json:"_id"`
}

func (s *fakeRecordService) handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/records", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]wirePatient, 0, len(s.records))
		for _, rec := range s.records {
			out = append(out, wirePatient{PatientRecord: rec, LegacyID: rec.ID})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"patients": out})
	})

	r.Post("/records", func(w http.ResponseWriter, r *http.Request) {
		var rec record.PatientRecord
		_ = json.NewDecoder(r.Body).Decode(&rec)
		s.mu.Lock()
		rec.ID = fmt.Sprintf("rec-%d", s.nextID)
		s.nextID++
		s.records[rec.ID] = rec
		s.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"patient": wirePatient{PatientRecord: rec, LegacyID: rec.ID}})
	})

	r.Get("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		rec, ok := s.records[chi.URLParam(r, "id")]
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Patient not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(wirePatient{PatientRecord: rec, LegacyID: rec.ID})
	})

	r.Put("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var rec record.PatientRecord
		_ = json.NewDecoder(r.Body).Decode(&rec)
		s.mu.Lock()
		rec.ID = id
		s.records[id] = rec
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"patient": wirePatient{PatientRecord: rec, LegacyID: id}})
	})

	r.Delete("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		delete(s.records, chi.URLParam(r, "id"))
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	writeData := func(w http.ResponseWriter, status int, v any) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
	}

	r.Get("/prescriptions", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]map[string]any, 0, len(s.prescriptions))
		for _, p := range s.prescriptions {
			out = append(out, p)
		}
		writeData(w, http.StatusOK, out)
	})

	r.Post("/prescriptions", func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		_ = json.NewDecoder(r.Body).Decode(&p)
		s.mu.Lock()
		id := fmt.Sprintf("rx-%d", s.nextRx)
		s.nextRx++
		p["_id"] = id
		s.prescriptions[id] = p
		s.mu.Unlock()
		writeData(w, http.StatusCreated, p)
	})

	r.Get("/prescriptions/patient/{patientID}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]map[string]any, 0)
		for _, p := range s.prescriptions {
			if p["patientId"] == chi.URLParam(r, "patientID") {
				out = append(out, p)
			}
		}
		writeData(w, http.StatusOK, out)
	})

	r.Get("/prescriptions/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		p, ok := s.prescriptions[chi.URLParam(r, "id")]
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Prescription not found"})
			return
		}
		writeData(w, http.StatusOK, p)
	})

	r.Put("/prescriptions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var p map[string]any
		_ = json.NewDecoder(r.Body).Decode(&p)
		s.mu.Lock()
		p["_id"] = id
		s.prescriptions[id] = p
		s.mu.Unlock()
		writeData(w, http.StatusOK, p)
	})

	r.Delete("/prescriptions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s.mu.Lock()
		p, ok := s.prescriptions[id]
		delete(s.prescriptions, id)
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Prescription not found"})
			return
		}
		writeData(w, http.StatusOK, p)
	})

	r.Get("/pharmacy-items", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeData(w, http.StatusOK, s.stock)
	})

	r.Post("/sales", func(w http.ResponseWriter, r *http.Request) {
		var req recordapi.SaleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.stock {
			if s.stock[i].ID != req.PharmacyItem {
				continue
			}
			if req.QuantitySold > s.stock[i].QuantityInStock {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "Insufficient stock"})
				return
			}
			s.stock[i].QuantityInStock -= req.QuantitySold
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": "Sale recorded",
				"sale":    map[string]any{"itemName": s.stock[i].ItemName, "quantitySold": req.QuantitySold},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Item not found"})
	})

	return r
}

type memoryReferralRepo struct {
	mu       sync.Mutex
	inserted []transfer.Referral
}

func (m *memoryReferralRepo) InsertReferral(_ context.Context, ref transfer.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, ref)
	return nil
}

func (m *memoryReferralRepo) ListReferrals(context.Context, int) ([]transfer.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transfer.Referral, len(m.inserted))
	copy(out, m.inserted)
	return out, nil
}

func (m *memoryReferralRepo) ListReferralsForPatient(_ context.Context, patientID string) ([]transfer.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []transfer.Referral
	for _, ref := range m.inserted {
		if ref.PatientID == patientID {
			out = append(out, ref)
		}
	}
	return out, nil
}

type portalFixture struct {
	portal   *httptest.Server
	upstream *fakeRecordService
	sink     *export.MemorySink
	repo     *memoryReferralRepo
}

func newPortal(t *testing.T) *portalFixture {
	t.Helper()

	upstream := newFakeRecordService()
	upstreamSrv := httptest.NewServer(upstream.handler())
	t.Cleanup(upstreamSrv.Close)

	client, err := recordapi.NewClient(recordapi.Config{
		BaseURL: upstreamSrv.URL,
		Timeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	sink := export.NewMemorySink()
	repo := &memoryReferralRepo{}

	router := NewRouter(RouterConfig{
		Forms:         forms.NewManager(client, client, time.Minute, nil),
		Directory:     directory.NewView(client, nil),
		Records:       client,
		Prescriptions: client,
		Transfer:      transfer.NewService(client, sink, repo, nil),
		Recipients:    transfer.NewMemoryRecipientStore(),
		Metrics:       testMetrics,
		Env:           "test",
		Version:       "test",
	})

	portal := httptest.NewServer(router)
	t.Cleanup(portal.Close)

	return &portalFixture{portal: portal, upstream: upstream, sink: sink, repo: repo}
}

func (f *portalFixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, f.portal.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, out.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func fillIntakeForm(t *testing.T, f *portalFixture, formID, firstName string) {
	t.Helper()

	fields := map[string]string{
		"firstName":          firstName,
		"lastName":           "Yusuf",
		"age":                "34",
		"gender":             "Female",
		"phone":              "+252615000001",
		"address":            "Main Street 4",
		"region":             "Awdal",
		"district":           "Borama",
		"healthProviderType": "Clinic",
		"diagnosis":          "Malaria",
	}
	for name, value := range fields {
		resp, body := f.do(t, http.MethodPatch, "/api/forms/"+formID, FieldUpdateRequest{Field: name, Value: value})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("set %s: %d %s", name, resp.StatusCode, body)
		}
	}
	resp, body := f.do(t, http.MethodPatch, "/api/forms/"+formID+"/treatments/0",
		FieldUpdateRequest{Field: "medication", Value: "Artemether"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set medication: %d %s", resp.StatusCode, body)
	}
	for field, value := range map[string]string{
		"vaccineName": "Measles",
		"dateGiven":   "2026-01-10",
	} {
		resp, body = f.do(t, http.MethodPatch, "/api/forms/"+formID+"/vaccinations/0",
			FieldUpdateRequest{Field: field, Value: value})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("set %s: %d %s", field, resp.StatusCode, body)
		}
	}
}

func TestPortal_CreatePatientFlow(t *testing.T) {
	f := newPortal(t)

	resp, body := f.do(t, http.MethodPost, "/api/forms", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open form: %d %s", resp.StatusCode, body)
	}
	form := decode[FormResponse](t, body)
	if form.Editing {
		t.Fatal("fresh form must not be in edit mode")
	}
	if len(form.Treatments) != 1 || len(form.Vaccinations) != 1 {
		t.Fatalf("fresh form must start with one blank entry per list: %+v", form)
	}

	// Submitting the blank form reports validation errors without dispatch.
	resp, body = f.do(t, http.MethodPost, "/api/forms/"+form.FormID+"/submit", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("blank submit: %d %s", resp.StatusCode, body)
	}
	submit := decode[SubmitResponse](t, body)
	if submit.Errors["firstName"] != "First name is required" {
		t.Fatalf("unexpected validation errors: %v", submit.Errors)
	}
	if len(f.upstream.records) != 0 {
		t.Fatal("validation failure must not reach the upstream")
	}

	fillIntakeForm(t, f, form.FormID, "Amina")

	resp, body = f.do(t, http.MethodPost, "/api/forms/"+form.FormID+"/submit", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: %d %s", resp.StatusCode, body)
	}
	submit = decode[SubmitResponse](t, body)
	if !submit.Created || submit.Message != "Patient created successfully!" {
		t.Fatalf("unexpected submit response: %+v", submit)
	}
	if submit.Record == nil || submit.Record.FirstName != "Amina" {
		t.Fatalf("unexpected record: %+v", submit.Record)
	}

	// Create-mode success resets the form.
	resp, body = f.do(t, http.MethodGet, "/api/forms/"+form.FormID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get form: %d %s", resp.StatusCode, body)
	}
	after := decode[FormResponse](t, body)
	if after.Fields["firstName"] != "" {
		t.Fatal("create success must reset the form")
	}
}

func TestPortal_EntryListRoutes(t *testing.T) {
	f := newPortal(t)

	_, body := f.do(t, http.MethodPost, "/api/forms", nil)
	form := decode[FormResponse](t, body)

	resp, body := f.do(t, http.MethodPost, "/api/forms/"+form.FormID+"/treatments", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add treatment: %d %s", resp.StatusCode, body)
	}
	if got := decode[FormResponse](t, body); len(got.Treatments) != 2 {
		t.Fatalf("expected 2 treatments, got %d", len(got.Treatments))
	}

	// Removing down to one entry works, removing the last is a no-op.
	resp, body = f.do(t, http.MethodDelete, "/api/forms/"+form.FormID+"/treatments/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove treatment: %d %s", resp.StatusCode, body)
	}
	_, body = f.do(t, http.MethodDelete, "/api/forms/"+form.FormID+"/treatments/0", nil)
	if got := decode[FormResponse](t, body); len(got.Treatments) != 1 {
		t.Fatalf("last entry must survive removal, got %d", len(got.Treatments))
	}

	// Out-of-bounds update is a silent no-op.
	resp, body = f.do(t, http.MethodPatch, "/api/forms/"+form.FormID+"/vaccinations/9",
		FieldUpdateRequest{Field: "vaccineName", Value: "Polio"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("oob update: %d %s", resp.StatusCode, body)
	}
}

func TestPortal_UnknownFormAndField(t *testing.T) {
	f := newPortal(t)

	resp, _ := f.do(t, http.MethodGet, "/api/forms/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown form: %d", resp.StatusCode)
	}

	_, body := f.do(t, http.MethodPost, "/api/forms", nil)
	form := decode[FormResponse](t, body)

	resp, _ = f.do(t, http.MethodPatch, "/api/forms/"+form.FormID,
		FieldUpdateRequest{Field: "notAField", Value: "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", resp.StatusCode)
	}
}

func TestPortal_EditFlow(t *testing.T) {
	f := newPortal(t)
	f.upstream.records["rec-7"] = record.PatientRecord{
		ID: "rec-7", FirstName: "Omar", LastName: "Ali", Age: 40,
		Gender: "Male", Phone: "1", Address: "a", Region: "Sool",
		District: "d", HealthProviderType: "Hospital", Diagnosis: "Typhoid Fever",
		TreatmentPlan: []record.TreatmentEntry{{Medication: "Cipro", Dosage: "500mg"}},
		Vaccinations: []record.VaccinationEntry{
			{VaccineName: "Tetanus", DoseNumber: 1, DateGiven: "2026-01-05T00:00:00Z"},
		},
	}

	resp, body := f.do(t, http.MethodPost, "/api/forms?patient_id=rec-7", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open edit form: %d %s", resp.StatusCode, body)
	}
	form := decode[FormResponse](t, body)
	if !form.Editing || form.Fields["firstName"] != "Omar" {
		t.Fatalf("form not hydrated: %+v", form)
	}

	resp, body = f.do(t, http.MethodPatch, "/api/forms/"+form.FormID,
		FieldUpdateRequest{Field: "firstName", Value: "Omar Updated"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit: %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/api/forms/"+form.FormID+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update submit: %d %s", resp.StatusCode, body)
	}
	submit := decode[SubmitResponse](t, body)
	if submit.Created || submit.Message != "Patient updated successfully!" {
		t.Fatalf("unexpected update response: %+v", submit)
	}
	if f.upstream.records["rec-7"].FirstName != "Omar Updated" {
		t.Fatal("upstream record not updated")
	}

	// Edit-mode success keeps the form open with its values.
	_, body = f.do(t, http.MethodGet, "/api/forms/"+form.FormID, nil)
	after := decode[FormResponse](t, body)
	if after.Fields["firstName"] != "Omar Updated" {
		t.Fatal("edit form must keep values after update")
	}
}

func TestPortal_DirectorySearchAndDelete(t *testing.T) {
	f := newPortal(t)
	f.upstream.records["a"] = record.PatientRecord{ID: "a", FirstName: "Amina", Diagnosis: "Malaria"}
	f.upstream.records["b"] = record.PatientRecord{ID: "b", FirstName: "Omar", Diagnosis: "Typhoid Fever"}

	resp, body := f.do(t, http.MethodGet, "/api/patients?q=malaria", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
	list := decode[PatientListResponse](t, body)
	if len(list.Patients) != 1 || list.Patients[0].ID != "a" {
		t.Fatalf("unexpected search result: %+v", list.Patients)
	}

	resp, _ = f.do(t, http.MethodDelete, "/api/patients/a", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unconfirmed delete: %d", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodDelete, "/api/patients/a?confirm=true", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}

	_, body = f.do(t, http.MethodGet, "/api/patients", nil)
	list = decode[PatientListResponse](t, body)
	if len(list.Patients) != 1 || list.Patients[0].ID != "b" {
		t.Fatalf("directory not reloaded after delete: %+v", list.Patients)
	}
}

func TestPortal_CSVAndDocuments(t *testing.T) {
	f := newPortal(t)
	f.upstream.records["a"] = record.PatientRecord{ID: "a", FirstName: "Amina", LastName: "Yusuf", Diagnosis: "Malaria"}

	resp, body := f.do(t, http.MethodGet, "/api/patients/export/csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("csv: %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(string(body), "First Name") || !strings.Contains(string(body), "Amina") {
		t.Fatalf("unexpected csv: %s", body)
	}

	resp, body = f.do(t, http.MethodGet, "/api/patients/a/document", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("document: %d %s", resp.StatusCode, body)
	}
	if !strings.HasPrefix(string(body), "Patient Record") {
		t.Fatalf("unexpected document: %s", body)
	}

	resp, body = f.do(t, http.MethodGet, "/api/patients/document", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list document: %d %s", resp.StatusCode, body)
	}
	if !strings.HasPrefix(string(body), "All Patients") {
		t.Fatalf("unexpected list document: %s", body)
	}
}

func TestPortal_ReferralFlow(t *testing.T) {
	f := newPortal(t)
	f.upstream.records["a"] = record.PatientRecord{ID: "a", FirstName: "Amina", LastName: "Yusuf", Diagnosis: "Malaria"}

	resp, body := f.do(t, http.MethodGet, "/api/referrals/recipients", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recipients: %d %s", resp.StatusCode, body)
	}
	recipients := decode[RecipientsResponse](t, body)
	if len(recipients.Recipients) != 1 || recipients.Recipients[0] != transfer.DefaultRecipient {
		t.Fatalf("expected seeded default recipient: %+v", recipients)
	}

	resp, body = f.do(t, http.MethodPost, "/api/referrals/recipients", RecipientRequest{Number: "+252 700 111111"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add recipient: %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/api/referrals",
		ReferralRequest{PatientID: "a", Recipient: "+252 700 111111"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("referral: %d %s", resp.StatusCode, body)
	}
	result := decode[transfer.Result](t, body)
	if !strings.HasPrefix(result.Referral.MessageLink, "https://wa.me/252700111111?text=") {
		t.Fatalf("unexpected link %q", result.Referral.MessageLink)
	}
	if _, ok := f.sink.Files["Referral_Yusuf.txt"]; !ok {
		t.Fatalf("referral document not exported: %v", f.sink.Files)
	}

	resp, body = f.do(t, http.MethodGet, "/api/referrals", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: %d %s", resp.StatusCode, body)
	}
	history := decode[[]transfer.Referral](t, body)
	if len(history) != 1 || history[0].PatientName != "Amina Yusuf" {
		t.Fatalf("unexpected history: %+v", history)
	}

	// Per-patient history lists only that patient's referrals.
	resp, body = f.do(t, http.MethodGet, "/api/patients/a/referrals", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patient history: %d %s", resp.StatusCode, body)
	}
	history = decode[[]transfer.Referral](t, body)
	if len(history) != 1 || history[0].PatientID != "a" {
		t.Fatalf("unexpected patient history: %+v", history)
	}
	resp, body = f.do(t, http.MethodGet, "/api/patients/other/referrals", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("empty patient history: %d %s", resp.StatusCode, body)
	}
	if history = decode[[]transfer.Referral](t, body); len(history) != 0 {
		t.Fatalf("expected no referrals for unreferred patient: %+v", history)
	}

	// Missing recipient is rejected before anything runs.
	resp, _ = f.do(t, http.MethodPost, "/api/referrals", ReferralRequest{PatientID: "a"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing recipient: %d", resp.StatusCode)
	}
}

func TestPortal_PrescriptionRelay(t *testing.T) {
	f := newPortal(t)

	resp, body := f.do(t, http.MethodPost, "/api/prescriptions",
		map[string]string{"patientId": "a", "medication": "Amoxicillin", "dosage": "250mg"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create prescription: %d %s", resp.StatusCode, body)
	}
	created := decode[map[string]any](t, body)
	id, _ := created["_id"].(string)
	if id == "" || created["medication"] != "Amoxicillin" {
		t.Fatalf("unexpected create reply: %+v", created)
	}

	resp, body = f.do(t, http.MethodGet, "/api/prescriptions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list prescriptions: %d %s", resp.StatusCode, body)
	}
	if got := decode[[]map[string]any](t, body); len(got) != 1 {
		t.Fatalf("expected 1 prescription, got %+v", got)
	}

	// Per-patient listing mirrors the upstream patient filter.
	resp, body = f.do(t, http.MethodGet, "/api/patients/a/prescriptions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patient prescriptions: %d %s", resp.StatusCode, body)
	}
	if got := decode[[]map[string]any](t, body); len(got) != 1 {
		t.Fatalf("expected 1 prescription for patient a, got %+v", got)
	}
	_, body = f.do(t, http.MethodGet, "/api/patients/b/prescriptions", nil)
	if got := decode[[]map[string]any](t, body); len(got) != 0 {
		t.Fatalf("expected no prescriptions for patient b, got %+v", got)
	}

	resp, body = f.do(t, http.MethodPut, "/api/prescriptions/"+id,
		map[string]string{"patientId": "a", "medication": "Ciprofloxacin"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update prescription: %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodGet, "/api/prescriptions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get prescription: %d %s", resp.StatusCode, body)
	}
	if got := decode[map[string]any](t, body); got["medication"] != "Ciprofloxacin" {
		t.Fatalf("update not relayed: %+v", got)
	}

	resp, _ = f.do(t, http.MethodDelete, "/api/prescriptions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete prescription: %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/api/prescriptions/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted prescription must be gone: %d", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/prescriptions", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty body must be rejected before relaying: %d", resp.StatusCode)
	}
}

func TestPortal_RecordSale(t *testing.T) {
	f := newPortal(t)

	resp, body := f.do(t, http.MethodGet, "/api/pharmacy-items", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pharmacy items: %d %s", resp.StatusCode, body)
	}
	items := decode[[]recordapi.PharmacyItem](t, body)
	if len(items) != 1 || items[0].ItemName != "Paracetamol" {
		t.Fatalf("unexpected stock: %+v", items)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/sales", recordapi.SaleRequest{QuantitySold: 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("sale without a drug: %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodPost, "/api/sales", recordapi.SaleRequest{PharmacyItem: items[0].ID})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("sale with zero quantity: %d", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodPost, "/api/sales",
		recordapi.SaleRequest{PharmacyItem: items[0].ID, QuantitySold: 3})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sale: %d %s", resp.StatusCode, body)
	}
	reply := decode[map[string]any](t, body)
	sale, _ := reply["sale"].(map[string]any)
	if sale == nil || sale["itemName"] != "Paracetamol" {
		t.Fatalf("unexpected sale reply: %+v", reply)
	}

	_, body = f.do(t, http.MethodGet, "/api/pharmacy-items", nil)
	items = decode[[]recordapi.PharmacyItem](t, body)
	if items[0].QuantityInStock != 7 {
		t.Fatalf("stock not decremented: %+v", items)
	}
}

func TestPortal_MeWithoutSessionService(t *testing.T) {
	f := newPortal(t)

	resp, body := f.do(t, http.MethodGet, "/api/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", resp.StatusCode, body)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/logout", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
}

func TestPortal_FormSessionDiscard(t *testing.T) {
	f := newPortal(t)

	_, body := f.do(t, http.MethodPost, "/api/forms", nil)
	form := decode[FormResponse](t, body)

	resp, _ := f.do(t, http.MethodDelete, "/api/forms/"+form.FormID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("discard: %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/api/forms/"+form.FormID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("discarded form must be gone: %d", resp.StatusCode)
	}
}

func TestPortal_MetricsEndpoint(t *testing.T) {
	f := newPortal(t)

	resp, body := f.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "portal_http_requests_total") {
		t.Fatal("metrics output missing portal counters")
	}
}

func TestPortal_InvalidIndexRejected(t *testing.T) {
	f := newPortal(t)

	_, body := f.do(t, http.MethodPost, "/api/forms", nil)
	form := decode[FormResponse](t, body)

	resp, _ := f.do(t, http.MethodDelete, "/api/forms/"+form.FormID+"/treatments/x", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid index: %d", resp.StatusCode)
	}
}
