package gateway

import (
	"fmt"
	"strings"
)

// HeuristicPatterns returns the five most common corporate address shapes.
func HeuristicPatterns(firstName, lastName, domain string) []string {
	f := strings.ToLower(firstName)
	l := strings.ToLower(lastName)
	d := strings.ToLower(domain)

	return []string{
		fmt.Sprintf("%s.%s@%s", f, l, d),
		fmt.Sprintf("%s%s@%s", f, l, d),
		fmt.Sprintf("%s%s@%s", initial(f), l, d),
		fmt.Sprintf("%s%s@%s", f, initial(l), d),
		fmt.Sprintf("%s%s@%s", l, initial(f), d),
	}
}

func initial(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// ScoreLead rates a lead from 0 to 100 by how complete its record is.
func ScoreLead(firstName, lastName, companyName, role string) int {
	score := 50
	if role != "" {
		score += 10
	}
	if len(companyName) > 3 {
		score += 10
	}
	if firstName != "" && lastName != "" {
		score += 10
	}
	return min(100, max(0, score))
}

// CompanySummary is the placeholder summary used without a provider.
func CompanySummary(domain string) string {
	return fmt.Sprintf("Summary for %s\n- Industry: Unknown (sample)\n- Description: Placeholder from LeadProton AI\n- HQ: N/A", domain)
}

// StrategyOutline is the templated plan used without a provider.
func StrategyOutline(in StrategyInput) string {
	role := in.Role
	if role == "" {
		role = "N/A"
	}
	score := ScoreLead(in.FirstName, in.LastName, in.CompanyName, in.Role)

	return strings.Join([]string{
		fmt.Sprintf("Lead: %s %s (%s) at %s", in.FirstName, in.LastName, role, in.CompanyName),
		fmt.Sprintf("Estimated score: %d/100", score),
		"",
		"Outline:",
		"- Pain points: pipeline quality, manual prospecting",
		"- Value props: AI enrichment, personalized outreach",
		"- CTA: quick call to share examples",
	}, "\n")
}
