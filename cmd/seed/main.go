// Command seed fills the patient record service with generated records so
// the portal has realistic data to browse during development.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/scade330/clinic2-portal/internal/record"
	"github.com/scade330/clinic2-portal/internal/recordapi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	baseURL := os.Getenv("RECORD_API_URL")
	if baseURL == "" {
		log.Fatal("RECORD_API_URL is required")
	}

	count := 50
	if v := os.Getenv("SEED_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Fatalf("invalid SEED_COUNT %q", v)
		}
		count = n
	}

	client, err := recordapi.NewClient(recordapi.Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}, nil)
	if err != nil {
		log.Fatalf("record api client: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	ctx := context.Background()
	for i := 0; i < count; i++ {
		p := fakePatient()
		rec, err := client.CreateRecord(ctx, p)
		if err != nil {
			log.Fatalf("create record %d: %v", i+1, err)
		}
		if (i+1)%10 == 0 {
			log.Printf("patients seeded: %d/%d (last id=%s)", i+1, count, rec.ID)
		}
	}

	log.Println("seed complete")
}

func fakePatient() record.Payload {
	next := gofakeit.DateRange(time.Now(), time.Now().AddDate(0, 3, 0)).UTC().Format(time.RFC3339)

	treatments := make([]record.TreatmentEntry, gofakeit.Number(1, 3))
	for i := range treatments {
		treatments[i] = record.TreatmentEntry{
			Medication:   gofakeit.Word(),
			Dosage:       fmt.Sprintf("%dmg", gofakeit.Number(1, 16)*25),
			Instructions: gofakeit.Sentence(6),
		}
	}

	vaccinations := make([]record.VaccinationEntry, gofakeit.Number(0, 2))
	for i := range vaccinations {
		vaccinations[i] = record.VaccinationEntry{
			VaccineName:    gofakeit.RandomString([]string{"Measles", "Polio", "BCG", "Tetanus", "Hepatitis B"}),
			DoseNumber:     gofakeit.Number(1, 3),
			DateGiven:      gofakeit.DateRange(time.Now().AddDate(-2, 0, 0), time.Now()).UTC().Format(time.RFC3339),
			AdministeredBy: gofakeit.Name(),
		}
	}

	return record.Payload{
		FirstName:          gofakeit.FirstName(),
		LastName:           gofakeit.LastName(),
		Age:                gofakeit.Number(1, 95),
		Gender:             gofakeit.RandomString(record.Genders),
		Phone:              gofakeit.Phone(),
		Address:            gofakeit.Street(),
		Region:             gofakeit.RandomString(record.Regions),
		District:           gofakeit.City(),
		HealthProviderType: gofakeit.RandomString(record.ProviderTypes),
		MedicalHistory:     gofakeit.Sentence(10),
		CurrentMedications: gofakeit.Word(),
		Allergies:          gofakeit.RandomString([]string{"", "Penicillin", "Peanuts", "Dust"}),
		Diagnosis:          gofakeit.RandomString(record.DiagnosisOptions),
		PhysicalExam:       gofakeit.Sentence(8),
		LabResults:         gofakeit.Sentence(6),
		TreatmentPlan:      treatments,
		Vaccinations:       vaccinations,
		NextAppointment:    &next,
		Reason:             gofakeit.Sentence(5),
	}
}
