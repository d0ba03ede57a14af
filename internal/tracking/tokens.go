// Package tracking personalizes outgoing email and rewrites its HTML for
// open and click tracking.
package tracking

import (
	"strings"

	"github.com/leadproton/server/internal/model"
)

// SubstituteTokens replaces {firstName}, {lastName}, {companyName} and {role}
// with the lead's values. Other braces are left as they are.
func SubstituteTokens(text string, lead model.Lead) string {
	if text == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{firstName}", lead.FirstName,
		"{lastName}", lead.LastName,
		"{companyName}", lead.CompanyName,
		"{role}", lead.Role,
	)
	return r.Replace(text)
}
