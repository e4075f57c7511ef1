package transfer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/scade330/clinic2-portal/internal/record"
)

// ReferralMessage is the text prefilled into the WhatsApp conversation.
func ReferralMessage(r record.PatientRecord) string {
	return fmt.Sprintf("*REFERRAL NOTICE*\nPatient: %s\nDiagnosis: %s\n\nPDF downloaded. Attaching now...",
		r.FullName(), r.Diagnosis)
}

// DeepLink builds the wa.me URL for a recipient number. Everything but
// digits is stripped from the number before it goes into the path.
func DeepLink(number, message string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(message)
}
