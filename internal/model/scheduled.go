package model

import "time"

// ScheduledEmail is a tracked follow-up waiting for delivery.
type ScheduledEmail struct {
	ID      string    `json:"id"`
	LeadID  string    `json:"leadId"`
	EmailID string    `json:"emailId"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SendAt  time.Time `json:"sendAt"`
	// Attempts counts failed deliveries.
	Attempts int    `json:"attempts,omitempty"`
	LastErr  string `json:"lastError,omitempty"`
}

// Due reports whether the email should be sent at now.
func (e ScheduledEmail) Due(now time.Time) bool {
	return !e.SendAt.After(now)
}
