package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Errors maps a field key to its validation message. Sub-record keys are
// positional, e.g. "medication-0".
type Errors map[string]string

func (e Errors) Valid() bool { return len(e) == 0 }

// Validate checks the form against the field schema and the sub-record
// rules. It is pure: it never mutates the form and never touches the
// network. A valid form returns an empty map.
func Validate(f *Form) Errors {
	errs := Errors{}

	for _, spec := range FormFields {
		if !spec.Required {
			continue
		}
		if strings.TrimSpace(f.Field(spec.Name)) == "" {
			errs[spec.Name] = spec.Label + " is required"
		}
	}

	if _, ok := errs["age"]; !ok {
		age, err := strconv.Atoi(strings.TrimSpace(f.Field("age")))
		if err != nil || age < 0 || age > 120 {
			errs["age"] = "Enter a valid age"
		}
	}

	for i, t := range f.Treatments.Entries() {
		if strings.TrimSpace(t.Medication) == "" {
			errs[fmt.Sprintf("medication-%d", i)] = "Medication required"
		}
	}

	for i, v := range f.Vaccinations.Entries() {
		if strings.TrimSpace(v.VaccineName) == "" {
			errs[fmt.Sprintf("vaccineName-%d", i)] = "Vaccine required"
		}
		if strings.TrimSpace(v.DateGiven) == "" {
			errs[fmt.Sprintf("dateGiven-%d", i)] = "Date required"
		}
	}

	return errs
}
