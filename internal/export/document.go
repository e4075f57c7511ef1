package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/scade330/clinic2-portal/internal/record"
)

// formatDate renders an RFC3339 timestamp the way the directory shows it.
// Anything unparseable falls back to "None".
func formatDate(value string) string {
	if value == "" {
		return "None"
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "None"
	}
	return t.Format("Jan 2, 2006")
}

func orNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "None"
	}
	return value
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" || value == "null" {
		return "N/A"
	}
	return value
}

func treatmentSummary(entries []record.TreatmentEntry) string {
	if len(entries) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(entries))
	for _, t := range entries {
		parts = append(parts, fmt.Sprintf("%s (%s)", t.Medication, t.Dosage))
	}
	return strings.Join(parts, "; ")
}

func instructionSummary(entries []record.TreatmentEntry) string {
	if len(entries) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(entries))
	for _, t := range entries {
		parts = append(parts, t.Instructions)
	}
	return strings.Join(parts, "; ")
}

func vaccinationSummary(entries []record.VaccinationEntry) string {
	if len(entries) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(entries))
	for _, v := range entries {
		given := "N/A"
		if v.DateGiven != "" {
			given = formatDate(v.DateGiven)
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", v.VaccineName, given))
	}
	return strings.Join(parts, "; ")
}

func nextAppointment(r record.PatientRecord) string {
	if r.NextAppointment == nil {
		return "None"
	}
	return formatDate(*r.NextAppointment)
}

func writeLabeled(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%-18s %s\n", label+":", value)
}

// ReferralDocument serializes all clinical fields of one record into the
// fixed label/value referral layout.
func ReferralDocument(r record.PatientRecord) []byte {
	var b strings.Builder
	b.WriteString("MEDICAL REFERRAL FORM\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	writeLabeled(&b, "Patient ID", orNA(r.ID))
	writeLabeled(&b, "Full Name", orNA(r.FullName()))
	writeLabeled(&b, "Demographics", fmt.Sprintf("%dY / %s", r.Age, orNA(r.Gender)))
	writeLabeled(&b, "Contact", orNA(r.Phone))
	writeLabeled(&b, "Address", orNA(strings.Join([]string{r.Address, r.District, r.Region}, ", ")))
	writeLabeled(&b, "Provider", orNA(r.HealthProviderType))
	writeLabeled(&b, "Medical History", orNA(r.MedicalHistory))
	writeLabeled(&b, "Allergies", orNA(r.Allergies))
	writeLabeled(&b, "Current Meds", orNA(r.CurrentMedications))
	writeLabeled(&b, "Diagnosis", orNA(r.Diagnosis))
	writeLabeled(&b, "Physical Exam", orNA(r.PhysicalExam))
	writeLabeled(&b, "Lab Results", orNA(r.LabResults))
	writeLabeled(&b, "Vaccinations", vaccinationSummary(r.Vaccinations))
	writeLabeled(&b, "Treatment Plan", treatmentSummary(r.TreatmentPlan))
	writeLabeled(&b, "Next Appointment", nextAppointment(r))
	writeLabeled(&b, "Referral Reason", orNA(r.Reason))

	return []byte(b.String())
}

// PrintDocument is the printable single-record layout used by the
// directory's per-row print action.
func PrintDocument(r record.PatientRecord) []byte {
	var b strings.Builder
	b.WriteString("Patient Record\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")

	writeLabeled(&b, "Name", r.FullName())
	writeLabeled(&b, "Age", fmt.Sprintf("%d", r.Age))
	writeLabeled(&b, "Gender", orNone(r.Gender))
	writeLabeled(&b, "Phone", orNone(r.Phone))
	writeLabeled(&b, "Region", orNone(r.Region))
	writeLabeled(&b, "District", orNone(r.District))
	writeLabeled(&b, "Address", orNone(r.Address))
	writeLabeled(&b, "Medical History", orNone(r.MedicalHistory))
	writeLabeled(&b, "Current Meds", orNone(r.CurrentMedications))
	writeLabeled(&b, "Allergies", orNone(r.Allergies))
	writeLabeled(&b, "Diagnosis", orNone(r.Diagnosis))
	writeLabeled(&b, "Physical Exam", orNone(r.PhysicalExam))
	writeLabeled(&b, "Lab Results", orNone(r.LabResults))
	writeLabeled(&b, "Treatment Plan", treatmentSummary(r.TreatmentPlan))
	writeLabeled(&b, "Instructions", instructionSummary(r.TreatmentPlan))
	writeLabeled(&b, "Next Appointment", nextAppointment(r))
	writeLabeled(&b, "Reason", orNone(r.Reason))
	writeLabeled(&b, "Vaccinations", vaccinationSummary(r.Vaccinations))

	return []byte(b.String())
}

// ListDocument is the printable table of the (filtered) directory.
func ListDocument(records []record.PatientRecord) []byte {
	var b strings.Builder
	b.WriteString("All Patients\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s | %d | %s | %s | %s | %s | %s\n",
			i+1,
			r.FullName(),
			r.Age,
			orNone(r.Gender),
			orNone(r.Phone),
			orNone(r.Region),
			orNone(r.District),
			orNone(r.Diagnosis),
		)
		fmt.Fprintf(&b, "   Treatment: %s\n", treatmentSummary(r.TreatmentPlan))
		fmt.Fprintf(&b, "   Vaccinations: %s\n", vaccinationSummary(r.Vaccinations))
	}

	return []byte(b.String())
}
