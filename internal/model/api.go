package model

import "time"

// LeadRecord is the lead shape served by the CRUD API.
type LeadRecord struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	CompanyName string     `json:"companyName"`
	Role        string     `json:"role,omitempty"`
	Status      LeadStatus `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// CreateLeadRequest is the request to create a lead through the CRUD API.
type CreateLeadRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
	Role        string `json:"role,omitempty"`
	Status      string `json:"status,omitempty"`
}

// UpdateLeadRequest is a partial update; nil fields are left unchanged.
type UpdateLeadRequest struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Email       *string `json:"email,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
	Role        *string `json:"role,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// EmailPatternsRequest asks for candidate addresses of a person at a domain.
type EmailPatternsRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Domain    string `json:"domain"`
}

// EmailPatternsResponse carries candidate addresses.
type EmailPatternsResponse struct {
	Patterns []string `json:"patterns"`
}

// CompanyInfoRequest asks for a summary of the company behind a domain.
type CompanyInfoRequest struct {
	Domain string `json:"domain"`
}

// Source is a grounding reference returned with generated text.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
	Kind  string `json:"kind,omitempty"`
}

// GroundedText is generated text with the sources it was grounded on.
type GroundedText struct {
	Info    string   `json:"info"`
	Sources []Source `json:"sources"`
}

// StrategyRequest asks for an outreach plan for a lead.
type StrategyRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName"`
	Role        string `json:"role,omitempty"`
}

// StrategyResponse carries the outreach plan and a heuristic lead score.
type StrategyResponse struct {
	Strategy string `json:"strategy"`
	Score    int    `json:"score"`
}

// SubjectLinesRequest asks for subject lines matching an email body.
type SubjectLinesRequest struct {
	Body string `json:"body"`
}

// SubjectLinesResponse carries suggested subject lines.
type SubjectLinesResponse struct {
	SubjectLines []string `json:"subjectLines"`
}

// EmailBodyRequest asks for a generated email body.
type EmailBodyRequest struct {
	Prompt string `json:"prompt"`
}

// PersonalizeRequest asks for a body rewritten for one workspace lead.
type PersonalizeRequest struct {
	LeadID string `json:"leadId"`
	Body   string `json:"body"`
}

// TextResponse carries a single generated text.
type TextResponse struct {
	Text string `json:"text"`
}

// CompanyLocationRequest asks for the headquarters of a company near a point.
type CompanyLocationRequest struct {
	CompanyName string  `json:"companyName"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}
