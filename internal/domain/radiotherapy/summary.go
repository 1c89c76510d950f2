package radiotherapy

import (
	"fmt"
	"strings"
)

var treatmentPhrases = map[string]string{
	"radical":     "Condition after radical treatment",
	"palliative":  "Condition after palliative treatment",
	"symptomatic": "Condition after symptomatic treatment",
}

// DiagnosisText renders the diagnosis block staff paste into referral
// letters and other systems.
func DiagnosisText(p *Patient) string {
	var parts []string
	add := func(s *string, format string) {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, fmt.Sprintf(format, strings.TrimSpace(*s)))
		}
	}

	add(p.Diagnosis, "%s")
	add(p.TNMStaging, "%s")
	add(p.DiseaseStage, "gr. %s")
	add(p.ClinicalGroup, "cl. gr. %s")
	if p.TreatmentType != nil {
		if phrase, ok := treatmentPhrases[strings.ToLower(*p.TreatmentType)]; ok {
			parts = append(parts, phrase)
		}
	}
	if p.HistologyNumber != nil && *p.HistologyNumber != "" && p.HistologyDate != nil {
		parts = append(parts, fmt.Sprintf("Histology No. %s of %s", *p.HistologyNumber, p.HistologyDate.Format("02.01.2006")))
	}
	add(p.HistologyDescription, "- %s")

	if len(parts) == 0 {
		return "Diagnosis not specified"
	}
	return strings.Join(parts, ". ")
}
