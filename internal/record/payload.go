package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Payload is the wire shape of a create or update call: trimmed fields,
// resolved diagnosis, normalized timestamps, and no placeholder entries.
type Payload struct {
	FirstName          string             `json:"firstName"`
	LastName           string             `json:"lastName"`
	Age                int                `json:"age"`
	Gender             string             `json:"gender"`
	Phone              string             `json:"phone"`
	Address            string             `json:"address"`
	Region             string             `json:"region"`
	District           string             `json:"district"`
	HealthProviderType string             `json:"healthProviderType"`
	MedicalHistory     string             `json:"medicalHistory"`
	CurrentMedications string             `json:"currentMedications"`
	Allergies          string             `json:"allergies"`
	Diagnosis          string             `json:"diagnosis"`
	PhysicalExam       string             `json:"physicalExam"`
	LabResults         string             `json:"labResults"`
	TreatmentPlan      []TreatmentEntry   `json:"treatmentPlan"`
	Vaccinations       []VaccinationEntry `json:"vaccinations"`
	NextAppointment    *string            `json:"nextAppointment"`
	Reason             string             `json:"reason"`
}

// Accepted input layouts for the two date fields. The first match wins and
// the value is re-encoded as RFC3339 UTC.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func normalizeDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", value)
}

// EffectiveDiagnosis resolves the "Other" escape hatch: the free-text
// override is used when present, else the literal "Other".
func EffectiveDiagnosis(diagnosis, override string) string {
	diagnosis = strings.TrimSpace(diagnosis)
	if diagnosis != DiagnosisOther {
		return diagnosis
	}
	if o := strings.TrimSpace(override); o != "" {
		return o
	}
	return DiagnosisOther
}

// BuildPayload serializes a form into the wire payload. Treatment entries
// with a blank medication are dropped; vaccination dose numbers are coerced
// to integers and dates to RFC3339. The caller is expected to have run
// Validate first; only date parsing can still fail here.
func BuildPayload(f *Form) (Payload, error) {
	field := func(name string) string { return strings.TrimSpace(f.Field(name)) }

	age, _ := strconv.Atoi(field("age"))

	p := Payload{
		FirstName:          field("firstName"),
		LastName:           field("lastName"),
		Age:                age,
		Gender:             field("gender"),
		Phone:              field("phone"),
		Address:            field("address"),
		Region:             field("region"),
		District:           field("district"),
		HealthProviderType: field("healthProviderType"),
		MedicalHistory:     field("medicalHistory"),
		CurrentMedications: field("currentMedications"),
		Allergies:          field("allergies"),
		Diagnosis:          EffectiveDiagnosis(f.Field("diagnosis"), f.Field("diagnosisOther")),
		PhysicalExam:       field("physicalExam"),
		LabResults:         field("labResults"),
		Reason:             field("reason"),
		TreatmentPlan:      []TreatmentEntry{},
		Vaccinations:       []VaccinationEntry{},
	}

	for _, t := range f.Treatments.Entries() {
		if strings.TrimSpace(t.Medication) == "" {
			continue
		}
		p.TreatmentPlan = append(p.TreatmentPlan, TreatmentEntry{
			Medication:   strings.TrimSpace(t.Medication),
			Dosage:       strings.TrimSpace(t.Dosage),
			Instructions: strings.TrimSpace(t.Instructions),
		})
	}

	for i, v := range f.Vaccinations.Entries() {
		dose, err := strconv.Atoi(strings.TrimSpace(v.DoseNumber))
		if err != nil || dose < 1 {
			dose = 1
		}
		given, err := normalizeDate(v.DateGiven)
		if err != nil {
			return Payload{}, fmt.Errorf("vaccination %d: %w", i, err)
		}
		p.Vaccinations = append(p.Vaccinations, VaccinationEntry{
			VaccineName:    strings.TrimSpace(v.VaccineName),
			DoseNumber:     dose,
			DateGiven:      given,
			AdministeredBy: strings.TrimSpace(v.AdministeredBy),
			Notes:          strings.TrimSpace(v.Notes),
		})
	}

	if next := field("nextAppointment"); next != "" {
		normalized, err := normalizeDate(next)
		if err != nil {
			return Payload{}, fmt.Errorf("next appointment: %w", err)
		}
		p.NextAppointment = &normalized
	}

	return p, nil
}
