// Command simulate drives load against a running portal: workers mix
// intake flows, directory searches and referrals, then print a latency
// report per operation.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/scade330/clinic2-portal/internal/record"
)

type SimConfig struct {
	PortalBaseURL string
	Duration      time.Duration
	Workers       int
	IntakeRatio   float64
	SearchRatio   float64
	ReferralRatio float64
}

type DataPool struct {
	mu       sync.RWMutex
	patients []string // IDs of patients created during the run
}

func (dp *DataPool) AddPatient(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.patients = append(dp.patients, id)
}

func (dp *DataPool) GetRandomPatient() (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.patients) == 0 {
		return "", false
	}
	return dp.patients[rand.Intn(len(dp.patients))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, rejected bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if rejected {
		atomic.AddInt64(&om.Rejected, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Intake   OperationMetrics
	Search   OperationMetrics
	Referral OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d intake=%.2f search=%.2f referral=%.2f",
		cfg.Duration, cfg.Workers, cfg.IntakeRatio, cfg.SearchRatio, cfg.ReferralRatio)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		PortalBaseURL: getEnv("SIM_PORTAL_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		IntakeRatio:   getFloat("SIM_INTAKE_RATIO", 0.4),
		SearchRatio:   getFloat("SIM_SEARCH_RATIO", 0.4),
		ReferralRatio: getFloat("SIM_REFERRAL_RATIO", 0.2),
	}

	// Normalize ratios
	total := cfg.IntakeRatio + cfg.SearchRatio + cfg.ReferralRatio
	if total > 0 {
		cfg.IntakeRatio /= total
		cfg.SearchRatio /= total
		cfg.ReferralRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.IntakeRatio {
				s.doIntake(ctx, rng)
			} else if r < s.config.IntakeRatio+s.config.SearchRatio {
				s.doSearch(ctx, rng)
			} else {
				s.doReferral(ctx)
			}
		}
	}
}

// doIntake runs the full form flow: open, fill, submit.
func (s *Simulator) doIntake(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	success, rejected := s.runIntake(ctx, rng)
	s.metrics.Intake.Record(time.Since(start), success, rejected)
}

func (s *Simulator) runIntake(ctx context.Context, rng *rand.Rand) (success, rejected bool) {
	var opened struct {
		FormID string `json:"formId"`
	}
	if status := s.postJSON(ctx, "/api/forms", nil, &opened); status != http.StatusCreated {
		return false, false
	}

	fields := map[string]string{
		"firstName":          gofakeit.FirstName(),
		"lastName":           gofakeit.LastName(),
		"age":                strconv.Itoa(gofakeit.Number(1, 95)),
		"gender":             record.Genders[rng.Intn(len(record.Genders))],
		"phone":              gofakeit.Phone(),
		"address":            gofakeit.Street(),
		"region":             record.Regions[rng.Intn(len(record.Regions))],
		"district":           gofakeit.City(),
		"healthProviderType": record.ProviderTypes[rng.Intn(len(record.ProviderTypes))],
		"diagnosis":          record.DiagnosisOptions[rng.Intn(len(record.DiagnosisOptions))],
		"diagnosisOther":     gofakeit.Word(),
	}
	for name, value := range fields {
		body := map[string]string{"field": name, "value": value}
		if status := s.patchJSON(ctx, "/api/forms/"+opened.FormID, body, nil); status != http.StatusOK {
			return false, false
		}
	}
	for field, value := range map[string]string{
		"medication":  gofakeit.Word(),
		"dosage":      fmt.Sprintf("%dmg", gofakeit.Number(1, 16)*25),
		"vaccineName": "Measles",
		"dateGiven":   time.Now().AddDate(0, -1, 0).Format("2006-01-02"),
	} {
		path := "/api/forms/" + opened.FormID + "/treatments/0"
		if field == "vaccineName" || field == "dateGiven" {
			path = "/api/forms/" + opened.FormID + "/vaccinations/0"
		}
		body := map[string]string{"field": field, "value": value}
		if status := s.patchJSON(ctx, path, body, nil); status != http.StatusOK {
			return false, false
		}
	}

	var submitted struct {
		Record *struct {
			ID string `json:"id"`
		} `json:"record"`
	}
	status := s.postJSON(ctx, "/api/forms/"+opened.FormID+"/submit", nil, &submitted)
	if status == http.StatusUnprocessableEntity {
		return false, true
	}
	if status != http.StatusCreated {
		return false, false
	}
	if submitted.Record != nil && submitted.Record.ID != "" {
		s.pool.AddPatient(submitted.Record.ID)
	}
	return true, false
}

func (s *Simulator) doSearch(ctx context.Context, rng *rand.Rand) {
	queries := []string{"", "malaria", "female", gofakeit.FirstName()}
	q := queries[rng.Intn(len(queries))]

	start := time.Now()
	status := s.getStatus(ctx, "/api/patients?q="+q)
	s.metrics.Search.Record(time.Since(start), status == http.StatusOK, false)
}

func (s *Simulator) doReferral(ctx context.Context) {
	patientID, ok := s.pool.GetRandomPatient()
	if !ok {
		return
	}

	start := time.Now()
	body := map[string]string{"patientId": patientID, "recipient": "+252 615 000000"}
	status := s.postJSON(ctx, "/api/referrals", body, nil)
	s.metrics.Referral.Record(time.Since(start), status == http.StatusCreated, status == http.StatusBadRequest)
}

func (s *Simulator) postJSON(ctx context.Context, path string, body any, out any) int {
	return s.doJSON(ctx, http.MethodPost, path, body, out)
}

func (s *Simulator) patchJSON(ctx context.Context, path string, body any, out any) int {
	return s.doJSON(ctx, http.MethodPatch, path, body, out)
}

func (s *Simulator) doJSON(ctx context.Context, method, path string, body, out any) int {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.PortalBaseURL+path, &buf)
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if out != nil {
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, out)
	}
	return resp.StatusCode
}

func (s *Simulator) getStatus(ctx context.Context, path string) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.PortalBaseURL+path, nil)
	if err != nil {
		return 0
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Intake", &s.metrics.Intake)
	printOperationReport("Search", &s.metrics.Search)
	printOperationReport("Referral", &s.metrics.Referral)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	errored := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if errored > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errored, float64(errored)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
