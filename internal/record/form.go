package record

import (
	"errors"
	"strconv"
)

var ErrUnknownField = errors.New("unknown form field")

type FieldKind string

const (
	FieldText      FieldKind = "text"
	FieldMultiline FieldKind = "multiline"
	FieldNumber    FieldKind = "number"
	FieldEnum      FieldKind = "enum"
	FieldDateTime  FieldKind = "datetime"
)

// FieldSpec describes one scalar form field. The form model is driven by
// this schema so that form variants are configuration, not copies.
type FieldSpec struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// FormFields is the scalar field schema of the patient record form.
var FormFields = []FieldSpec{
	{Name: "firstName", Label: "First name", Kind: FieldText, Required: true},
	{Name: "lastName", Label: "Last name", Kind: FieldText, Required: true},
	{Name: "age", Label: "Age", Kind: FieldNumber, Required: true},
	{Name: "gender", Label: "Gender", Kind: FieldEnum, Required: true, Options: Genders},
	{Name: "phone", Label: "Phone", Kind: FieldText, Required: true},
	{Name: "address", Label: "Address", Kind: FieldText, Required: true},
	{Name: "region", Label: "Region", Kind: FieldEnum, Required: true, Options: Regions},
	{Name: "district", Label: "District", Kind: FieldText, Required: true},
	{Name: "healthProviderType", Label: "Health provider", Kind: FieldEnum, Required: true, Options: ProviderTypes},
	{Name: "medicalHistory", Label: "Medical history", Kind: FieldMultiline},
	{Name: "currentMedications", Label: "Current medications", Kind: FieldMultiline},
	{Name: "allergies", Label: "Allergies", Kind: FieldMultiline},
	{Name: "diagnosis", Label: "Diagnosis", Kind: FieldEnum, Options: DiagnosisOptions},
	{Name: "diagnosisOther", Label: "Other diagnosis", Kind: FieldMultiline},
	{Name: "physicalExam", Label: "Physical exam", Kind: FieldMultiline},
	{Name: "labResults", Label: "Lab results", Kind: FieldMultiline},
	{Name: "nextAppointment", Label: "Next appointment", Kind: FieldDateTime},
	{Name: "reason", Label: "Follow-up reason", Kind: FieldText},
}

// VaccinationInput is the editable shape of a vaccination entry. DoseNumber
// stays a string while editing and is coerced to an integer at submission.
type VaccinationInput struct {
	VaccineName    string `json:"vaccineName"`
	DoseNumber     string `json:"doseNumber"`
	DateGiven      string `json:"dateGiven"`
	AdministeredBy string `json:"administeredBy"`
	Notes          string `json:"notes"`
}

// EntryList is an ordered, mutable collection of structured sub-records.
// Index is positional identity for the duration of the editing session;
// reordering is not supported. The list never shrinks below one entry.
type EntryList[T any] struct {
	entries []T
	blank   func() T
	set     func(*T, string, string) bool
}

func newEntryList[T any](blank func() T, set func(*T, string, string) bool) EntryList[T] {
	return EntryList[T]{entries: []T{blank()}, blank: blank, set: set}
}

func (l *EntryList[T]) Len() int { return len(l.entries) }

// Entries returns a copy so callers cannot alias the working slice.
func (l *EntryList[T]) Entries() []T {
	out := make([]T, len(l.entries))
	copy(out, l.entries)
	return out
}

// UpdateField replaces one field of the entry at i. Out-of-bounds indexes
// and unknown field names are silent no-ops.
func (l *EntryList[T]) UpdateField(i int, field, value string) {
	if i < 0 || i >= len(l.entries) {
		return
	}
	l.set(&l.entries[i], field, value)
}

// Add appends a default-filled entry, preserving existing order.
func (l *EntryList[T]) Add() {
	l.entries = append(l.entries, l.blank())
}

// Remove drops the entry at i, preserving relative order of the rest.
// Removing the last remaining entry is a no-op.
func (l *EntryList[T]) Remove(i int) {
	if i < 0 || i >= len(l.entries) || len(l.entries) == 1 {
		return
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
}

func (l *EntryList[T]) replace(entries []T) {
	if len(entries) == 0 {
		l.entries = []T{l.blank()}
		return
	}
	l.entries = make([]T, len(entries))
	copy(l.entries, entries)
}

func blankTreatment() TreatmentEntry { return TreatmentEntry{} }

func setTreatmentField(t *TreatmentEntry, field, value string) bool {
	switch field {
	case "medication":
		t.Medication = value
	case "dosage":
		t.Dosage = value
	case "instructions":
		t.Instructions = value
	default:
		return false
	}
	return true
}

func blankVaccination() VaccinationInput { return VaccinationInput{DoseNumber: "1"} }

func setVaccinationField(v *VaccinationInput, field, value string) bool {
	switch field {
	case "vaccineName":
		v.VaccineName = value
	case "doseNumber":
		v.DoseNumber = value
	case "dateGiven":
		v.DateGiven = value
	case "administeredBy":
		v.AdministeredBy = value
	case "notes":
		v.Notes = value
	default:
		return false
	}
	return true
}

// Form is the editable state of one patient record. It is exclusively owned
// by a single edit session; there is no sharing across concurrent editors.
type Form struct {
	// ID is set when editing an existing record and empty for a new one.
	ID string

	values       map[string]string
	Treatments   EntryList[TreatmentEntry]
	Vaccinations EntryList[VaccinationInput]
}

func NewForm() *Form {
	f := &Form{}
	f.Reset()
	return f
}

// Reset returns the form to its default state: blank scalars and one
// placeholder entry in each sub-record list.
func (f *Form) Reset() {
	f.ID = ""
	f.values = make(map[string]string, len(FormFields))
	for _, spec := range FormFields {
		f.values[spec.Name] = ""
	}
	f.Treatments = newEntryList(blankTreatment, setTreatmentField)
	f.Vaccinations = newEntryList(blankVaccination, setVaccinationField)
}

func (f *Form) Field(name string) string { return f.values[name] }

func (f *Form) SetField(name, value string) error {
	if _, ok := f.values[name]; !ok {
		return ErrUnknownField
	}
	f.values[name] = value
	return nil
}

// Fields returns a copy of the scalar field values.
func (f *Form) Fields() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Editing reports whether a submit will update an existing record.
func (f *Form) Editing() bool { return f.ID != "" }

// Hydrate populates the form from a fetched record for edit mode. Empty
// sub-record lists become a single placeholder entry.
func (f *Form) Hydrate(rec PatientRecord) {
	f.Reset()
	f.ID = rec.ID
	f.values["firstName"] = rec.FirstName
	f.values["lastName"] = rec.LastName
	f.values["age"] = strconv.Itoa(rec.Age)
	f.values["gender"] = rec.Gender
	f.values["phone"] = rec.Phone
	f.values["address"] = rec.Address
	f.values["region"] = rec.Region
	f.values["district"] = rec.District
	f.values["healthProviderType"] = rec.HealthProviderType
	f.values["medicalHistory"] = rec.MedicalHistory
	f.values["currentMedications"] = rec.CurrentMedications
	f.values["allergies"] = rec.Allergies
	f.values["diagnosis"] = rec.Diagnosis
	f.values["physicalExam"] = rec.PhysicalExam
	f.values["labResults"] = rec.LabResults
	f.values["reason"] = rec.Reason
	if rec.NextAppointment != nil {
		f.values["nextAppointment"] = *rec.NextAppointment
	}

	f.Treatments.replace(rec.TreatmentPlan)

	vaccs := make([]VaccinationInput, 0, len(rec.Vaccinations))
	for _, v := range rec.Vaccinations {
		vaccs = append(vaccs, VaccinationInput{
			VaccineName:    v.VaccineName,
			DoseNumber:     strconv.Itoa(v.DoseNumber),
			DateGiven:      v.DateGiven,
			AdministeredBy: v.AdministeredBy,
			Notes:          v.Notes,
		})
	}
	f.Vaccinations.replace(vaccs)
}
