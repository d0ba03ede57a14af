package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("Nurturing")
	require.NoError(t, err)
	assert.Equal(t, StatusNurturing, st)

	_, err = ParseStatus("nurturing")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestLead_Normalize(t *testing.T) {
	l := Lead{Status: "Lost", FollowUpCount: -2}
	l.Normalize()

	assert.Equal(t, StatusNew, l.Status)
	assert.Equal(t, []string{}, l.Tags)
	assert.Zero(t, l.FollowUpCount)
}

func TestLead_FullName(t *testing.T) {
	assert.Equal(t, "Ann Lee", Lead{FirstName: "Ann", LastName: "Lee"}.FullName())
	assert.Equal(t, "Lee", Lead{LastName: "Lee"}.FullName())
	assert.Equal(t, "Ann", Lead{FirstName: "Ann"}.FullName())
}

func TestLeadActivity_JSON(t *testing.T) {
	ts := time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		details ActivityDetails
		want    string
	}{
		{
			name:    "created",
			details: CreatedDetails{Note: "Lead imported from leads.csv"},
			want:    `{"id":"a1","type":"Created","timestamp":"2024-05-02T10:30:00Z","details":{"note":"Lead imported from leads.csv"}}`,
		},
		{
			name:    "email sent",
			details: EmailSentDetails{Subject: "Hi", Body: "<p>b</p>", EmailID: "E1", Note: "Email sent"},
			want:    `{"id":"a1","type":"Email Sent","timestamp":"2024-05-02T10:30:00Z","details":{"subject":"Hi","body":"<p>b</p>","note":"Email sent","emailId":"E1"}}`,
		},
		{
			name:    "opened",
			details: EmailOpenedDetails{EmailID: "E1"},
			want:    `{"id":"a1","type":"Email Opened","timestamp":"2024-05-02T10:30:00Z","details":{"emailId":"E1"}}`,
		},
		{
			name:    "clicked",
			details: LinkClickedDetails{URL: "https://acme.io", EmailID: "E1"},
			want:    `{"id":"a1","type":"Link Clicked","timestamp":"2024-05-02T10:30:00Z","details":{"url":"https://acme.io","emailId":"E1"}}`,
		},
		{
			name:    "note",
			details: NoteAddedDetails{Note: "call back"},
			want:    `{"id":"a1","type":"Note Added","timestamp":"2024-05-02T10:30:00Z","details":{"note":"call back"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := LeadActivity{ID: "a1", Timestamp: ts, Details: tt.details}

			data, err := json.Marshal(a)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back LeadActivity
			require.NoError(t, json.Unmarshal(data, &back))
			if diff := cmp.Diff(a, back); diff != "" {
				t.Errorf("decoded activity mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLeadActivity_UnknownType(t *testing.T) {
	var a LeadActivity
	err := json.Unmarshal([]byte(`{"id":"x","type":"Meeting","timestamp":"2024-05-02T10:30:00Z","details":{}}`), &a)
	assert.ErrorContains(t, err, `unknown activity type "Meeting"`)

	_, err = json.Marshal(LeadActivity{ID: "empty"})
	assert.Error(t, err)
}

func TestScheduledEmail_Due(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, ScheduledEmail{SendAt: now}.Due(now))
	assert.True(t, ScheduledEmail{SendAt: now.Add(-time.Second)}.Due(now))
	assert.False(t, ScheduledEmail{SendAt: now.Add(time.Second)}.Due(now))
}
