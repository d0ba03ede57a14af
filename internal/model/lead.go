// Package model defines data structures for the lead workspace.
package model

import (
	"errors"
	"time"
)

// LeadStatus is the pipeline stage of a lead.
type LeadStatus string

const (
	StatusNew       LeadStatus = "New"
	StatusContacted LeadStatus = "Contacted"
	StatusReplied   LeadStatus = "Replied"
	StatusNurturing LeadStatus = "Nurturing"
	StatusClosed    LeadStatus = "Closed"
)

// Statuses lists every lead status in pipeline order.
var Statuses = []LeadStatus{
	StatusNew,
	StatusContacted,
	StatusReplied,
	StatusNurturing,
	StatusClosed,
}

// ErrInvalidStatus is returned when a status is not one of Statuses.
var ErrInvalidStatus = errors.New("invalid lead status")

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus returns the status named by s, or ErrInvalidStatus.
func ParseStatus(s string) (LeadStatus, error) {
	st := LeadStatus(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// CompanyInfo holds enrichment data gathered during discovery.
type CompanyInfo struct {
	Description string `json:"description"`
	Location    string `json:"location"`
	Website     string `json:"website"`
}

// Lead represents a prospective contact tracked through the outreach pipeline.
type Lead struct {
	ID            string       `json:"id"`
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	Email         string       `json:"email"`
	CompanyName   string       `json:"companyName"`
	Role          string       `json:"role"`
	Status        LeadStatus   `json:"status"`
	Tags          []string     `json:"tags"`
	Source        string       `json:"source"`
	CreatedAt     time.Time    `json:"createdAt"`
	Notes         string       `json:"notes,omitempty"`
	FollowUpCount int          `json:"followUpCount"`
	CompanyInfo   *CompanyInfo `json:"companyInfo,omitempty"`
}

// FullName returns "First Last".
func (l Lead) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// Normalize enforces the collection invariants on a single lead.
func (l *Lead) Normalize() {
	if !l.Status.Valid() {
		l.Status = StatusNew
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	if l.FollowUpCount < 0 {
		l.FollowUpCount = 0
	}
}
