package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityType identifies the kind of a lead activity.
type ActivityType string

const (
	ActivityCreated     ActivityType = "Created"
	ActivityEmailSent   ActivityType = "Email Sent"
	ActivityEmailOpened ActivityType = "Email Opened"
	ActivityLinkClicked ActivityType = "Link Clicked"
	ActivityNoteAdded   ActivityType = "Note Added"
)

// ActivityDetails is the payload of a LeadActivity. The concrete type
// determines the activity type.
type ActivityDetails interface {
	Type() ActivityType
	wire() activityWire
}

// CreatedDetails records how a lead entered the workspace.
type CreatedDetails struct {
	Note string
}

// EmailSentDetails records an outgoing (or scheduled) follow-up.
type EmailSentDetails struct {
	Subject string
	Body    string
	EmailID string
	Note    string
}

// EmailOpenedDetails records that the tracking pixel of an email was loaded.
type EmailOpenedDetails struct {
	EmailID string
}

// LinkClickedDetails records a click on a tracked link.
type LinkClickedDetails struct {
	URL     string
	EmailID string
}

// NoteAddedDetails records a free-form note.
type NoteAddedDetails struct {
	Note string
}

func (CreatedDetails) Type() ActivityType     { return ActivityCreated }
func (EmailSentDetails) Type() ActivityType   { return ActivityEmailSent }
func (EmailOpenedDetails) Type() ActivityType { return ActivityEmailOpened }
func (LinkClickedDetails) Type() ActivityType { return ActivityLinkClicked }
func (NoteAddedDetails) Type() ActivityType   { return ActivityNoteAdded }

func (d CreatedDetails) wire() activityWire { return activityWire{Note: d.Note} }
func (d EmailSentDetails) wire() activityWire {
	return activityWire{Subject: d.Subject, Body: d.Body, EmailID: d.EmailID, Note: d.Note}
}
func (d EmailOpenedDetails) wire() activityWire { return activityWire{EmailID: d.EmailID} }
func (d LinkClickedDetails) wire() activityWire {
	return activityWire{URL: d.URL, EmailID: d.EmailID}
}
func (d NoteAddedDetails) wire() activityWire { return activityWire{Note: d.Note} }

// activityWire is the flat JSON shape shared by every details variant.
type activityWire struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	URL     string `json:"url,omitempty"`
	Note    string `json:"note,omitempty"`
	EmailID string `json:"emailId,omitempty"`
}

func (w activityWire) details(t ActivityType) (ActivityDetails, error) {
	switch t {
	case ActivityCreated:
		return CreatedDetails{Note: w.Note}, nil
	case ActivityEmailSent:
		return EmailSentDetails{Subject: w.Subject, Body: w.Body, EmailID: w.EmailID, Note: w.Note}, nil
	case ActivityEmailOpened:
		return EmailOpenedDetails{EmailID: w.EmailID}, nil
	case ActivityLinkClicked:
		return LinkClickedDetails{URL: w.URL, EmailID: w.EmailID}, nil
	case ActivityNoteAdded:
		return NoteAddedDetails{Note: w.Note}, nil
	}
	return nil, fmt.Errorf("unknown activity type %q", t)
}

// LeadActivity is a timestamped event in a lead's history.
type LeadActivity struct {
	ID        string
	Timestamp time.Time
	Details   ActivityDetails
}

// Type returns the activity type carried by the details.
func (a LeadActivity) Type() ActivityType {
	if a.Details == nil {
		return ""
	}
	return a.Details.Type()
}

// EmailID returns the email id referenced by the activity, if any.
func (a LeadActivity) EmailID() string {
	if a.Details == nil {
		return ""
	}
	return a.Details.wire().EmailID
}

type leadActivityJSON struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Details   activityWire `json:"details"`
}

// MarshalJSON implements json.Marshaler.
func (a LeadActivity) MarshalJSON() ([]byte, error) {
	if a.Details == nil {
		return nil, fmt.Errorf("activity %s has no details", a.ID)
	}
	return json.Marshal(leadActivityJSON{
		ID:        a.ID,
		Type:      a.Details.Type(),
		Timestamp: a.Timestamp,
		Details:   a.Details.wire(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *LeadActivity) UnmarshalJSON(data []byte) error {
	var raw leadActivityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	details, err := raw.Details.details(raw.Type)
	if err != nil {
		return err
	}
	a.ID = raw.ID
	a.Timestamp = raw.Timestamp
	a.Details = details
	return nil
}
