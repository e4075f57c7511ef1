package record

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// DiagnosisOther is the escape hatch value; the free-text override field is
// consulted at submission time when it is selected.
const DiagnosisOther = "Other"

var Genders = []string{"Male", "Female", "Other"}

var Regions = []string{"Awdal", "Maroodi Jeex", "Sanaag", "Sool", "Togdheer", "Saaxil"}

var ProviderTypes = []string{"Public Hospital", "Private Hospital", "MCH", "Clinic", "Health Center"}

var DiagnosisOptions = []string{
	"Acute Respiratory Infection (ARI)",
	"Pneumonia",
	"Diarrheal Disease",
	"Malaria",
	"Tuberculosis (TB)",
	"Typhoid Fever",
	"Intestinal Worms / Parasites",
	"Skin Infections",
	"Measles",
	"Hypertension (High Blood Pressure)",
	"Diabetes Mellitus",
	"Asthma & Chronic Respiratory Disease",
	"Maternal Conditions",
	"Neonatal Conditions",
	DiagnosisOther,
}

// TreatmentEntry is one course of medication inside a record's treatment plan.
type TreatmentEntry struct {
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions"`
}

// VaccinationEntry is one administered vaccine dose.
type VaccinationEntry struct {
	VaccineName    string `json:"vaccineName"`
	DoseNumber     int    `json:"doseNumber"`
	DateGiven      string `json:"dateGiven"` // RFC3339
	AdministeredBy string `json:"administeredBy"`
	Notes          string `json:"notes"`
}

// PatientRecord is a patient's stored clinical profile as held by the
// upstream record API. The ID is assigned server-side and is absent until
// the first successful create.
type PatientRecord struct {
	ID                 string             `json:"id,omitempty"`
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
	NextAppointment    *string            `json:"nextAppointment"` // RFC3339, null when unset
	Reason             string             `json:"reason"`
}

// FullName joins the name parts for display and search.
func (r PatientRecord) FullName() string {
	if r.FirstName == "" {
		return r.LastName
	}
	if r.LastName == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}
