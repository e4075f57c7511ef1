package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/scade330/clinic2-portal/internal/record"
)

var csvHeaders = []string{
	"First Name", "Last Name", "Age", "Gender", "Phone", "Region", "District", "Address",
	"Medical History", "Current Medications", "Allergies", "Diagnosis", "Physical Exam", "Lab Results",
	"Treatment Plan", "Instructions", "Next Appointment", "Reason", "Vaccinations",
}

// CSV renders the record collection with the directory's column set.
// Blank cells carry the "None" placeholder the directory shows on screen.
func CSV(records []record.PatientRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("export: write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			orNone(r.FirstName),
			orNone(r.LastName),
			fmt.Sprintf("%d", r.Age),
			orNone(r.Gender),
			orNone(r.Phone),
			orNone(r.Region),
			orNone(r.District),
			orNone(r.Address),
			orNone(r.MedicalHistory),
			orNone(r.CurrentMedications),
			orNone(r.Allergies),
			orNone(r.Diagnosis),
			orNone(r.PhysicalExam),
			orNone(r.LabResults),
			treatmentSummary(r.TreatmentPlan),
			instructionSummary(r.TreatmentPlan),
			nextAppointment(r),
			orNone(r.Reason),
			vaccinationSummary(r.Vaccinations),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("export: write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
