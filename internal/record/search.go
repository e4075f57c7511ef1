package record

import (
	"strconv"
	"strings"
)

// SearchText derives the lowercase searchable string for one record: name,
// diagnosis, phone, gender, region, district, age, and the flattened text
// of treatment and vaccination sub-records.
func SearchText(r PatientRecord) string {
	parts := []string{
		r.FullName(),
		r.Diagnosis,
		r.Phone,
		r.Gender,
		r.Region,
		r.District,
		strconv.Itoa(r.Age),
	}
	for _, t := range r.TreatmentPlan {
		parts = append(parts, t.Medication, t.Dosage)
	}
	for _, v := range r.Vaccinations {
		parts = append(parts, v.VaccineName)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Filter returns the records whose searchable text contains the query,
// case-insensitively. An empty query matches everything. The input slice
// is never mutated.
func Filter(records []PatientRecord, query string) []PatientRecord {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		out := make([]PatientRecord, len(records))
		copy(out, records)
		return out
	}
	out := make([]PatientRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(SearchText(r), query) {
			out = append(out, r)
		}
	}
	return out
}
