package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/internal/gateway"
	"github.com/leadproton/server/internal/mail"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/store"
	"github.com/leadproton/server/pkg/logger"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Name() string { return "fake" }

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type harness struct {
	ws      *Workspace
	kv      store.KV
	bus     *events.Bus
	mailer  *fakeMailer
	clock   time.Time
	changes []events.Change
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		kv:     store.NewMemory(),
		bus:    events.NewBus(),
		mailer: &fakeMailer{},
		clock:  base,
	}
	h.bus.Subscribe("", func(c events.Change) { h.changes = append(h.changes, c) })
	h.ws = New(Deps{KV: h.kv, Bus: h.bus, Mailer: h.mailer, Logger: logger.NewNop()})

	var n int
	h.ws.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	h.ws.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) addLead(t *testing.T, first, last, company string) model.Lead {
	t.Helper()
	l, created, err := h.ws.SaveLead(context.Background(), model.Lead{
		FirstName:   first,
		LastName:    last,
		Email:       strings.ToLower(first) + "@" + strings.ToLower(company) + ".io",
		CompanyName: company,
	})
	require.NoError(t, err)
	require.True(t, created)
	h.clock = h.clock.Add(time.Minute)
	return l
}

func TestSaveLead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	l := h.addLead(t, "Ann", "Lee", "Acme")
	assert.Equal(t, "id-1", l.ID)
	assert.Equal(t, model.StatusNew, l.Status)
	assert.Equal(t, "Manual", l.Source)
	assert.Equal(t, base, l.CreatedAt)
	assert.Equal(t, []string{}, l.Tags)

	acts, err := h.ws.LeadActivities(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, model.CreatedDetails{Note: "Lead created manually."}, acts[0].Details)

	l.Role = "CTO"
	l.CreatedAt = time.Time{}
	updated, created, err := h.ws.SaveLead(ctx, l)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "CTO", updated.Role)
	assert.Equal(t, base, updated.CreatedAt)

	acts, _ = h.ws.LeadActivities(ctx, l.ID)
	assert.Len(t, acts, 1, "updates do not add a Created activity")

	_, _, err = h.ws.SaveLead(ctx, model.Lead{FirstName: "No"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = h.ws.SaveLead(ctx, model.Lead{FirstName: "A", LastName: "B", Email: "c", Status: "Lost"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, model.ErrInvalidStatus)

	var saved int
	for _, c := range h.changes {
		if c.Topic == store.KeyLeads && c.Kind == KindSaved {
			saved++
		}
	}
	assert.Equal(t, 2, saved)
}

func ids(views []LeadView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.FirstName
	}
	return out
}

func TestListLeads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ann := h.addLead(t, "Ann", "Lee", "Acme")
	h.addLead(t, "Bob", "Zed", "Globex")
	h.addLead(t, "Cid", "Abe", "Initech")

	views, err := h.ws.ListLeads(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cid", "Bob", "Ann"}, ids(views))
	require.NotNil(t, views[0].LastActivityAt)

	views, err = h.ws.ListLeads(ctx, ListQuery{SortBy: "lastName"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cid", "Ann", "Bob"}, ids(views))

	views, err = h.ws.ListLeads(ctx, ListQuery{Search: "GLOB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, ids(views))

	views, err = h.ws.ListLeads(ctx, ListQuery{Search: "ann lee"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann"}, ids(views))

	// A note moves Ann to the most recent activity.
	h.ws.activities.Append(ctx, ann.ID, model.NoteAddedDetails{Note: "call back"})
	views, err = h.ws.ListLeads(ctx, ListQuery{SortBy: SortLastActivity, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, "Ann", views[0].FirstName)

	_, err = h.ws.ListLeads(ctx, ListQuery{SortBy: "tags"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteLeads_Cascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ann := h.addLead(t, "Ann", "Lee", "Acme")
	bob := h.addLead(t, "Bob", "Zed", "Globex")

	n, err := h.ws.DeleteLeads(ctx, ann.ID, "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = h.ws.GetLead(ctx, ann.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, h.ws.activities.List(ctx, ann.ID))
	assert.Len(t, h.ws.activities.List(ctx, bob.ID), 1)
}

func TestBulkStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")
	h.addLead(t, "Bob", "Zed", "Globex")

	n, err := h.ws.BulkStatus(ctx, []string{ann.ID}, "Replied")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := h.ws.GetLead(ctx, ann.ID)
	assert.Equal(t, model.StatusReplied, got.Status)

	_, err = h.ws.BulkStatus(ctx, []string{ann.ID}, "Won")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestImportExportCSV(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	existing := h.addLead(t, "Ann", "Lee", "Acme")

	input := "id,firstName,lastName,email,companyName\n" +
		existing.ID + ",Ann,Lee,ann@acme.io,Acme\n" +
		"L2,Bob,Zed,bob@globex.io,Globex\n"

	res, err := h.ws.ImportCSV(ctx, strings.NewReader(input), "leads.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Duplicates)
	assert.Empty(t, res.Skipped)

	acts := h.ws.activities.List(ctx, "L2")
	require.Len(t, acts, 1)
	assert.Equal(t, model.CreatedDetails{Note: "Lead imported from leads.csv"}, acts[0].Details)

	var buf bytes.Buffer
	require.NoError(t, h.ws.ExportCSV(ctx, &buf, "L2"))
	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `"L2","Bob","Zed"`))

	buf.Reset()
	require.NoError(t, h.ws.ExportCSV(ctx, &buf))
	assert.Len(t, strings.Split(buf.String(), "\n"), 3)
}

func TestAddNote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")

	a, err := h.ws.AddNote(ctx, ann.ID, "prefers email")
	require.NoError(t, err)
	assert.Equal(t, model.ActivityNoteAdded, a.Type())

	_, err = h.ws.AddNote(ctx, ann.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.ws.AddNote(ctx, "nope", "hi")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")

	tmpl, err := h.ws.SaveTemplate(ctx, model.Template{
		Name:    "Intro",
		Subject: "Hi {firstName}",
		Body:    "Hello {firstName} {lastName} at {companyName}, {unknown}",
	})
	require.NoError(t, err)

	d, err := h.ws.Compose(ctx, ann.ID, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, Draft{Subject: "Hi Ann", Body: "Hello Ann Lee at Acme, {unknown}"}, d)

	d, err = h.ws.Compose(ctx, ann.ID, "")
	require.NoError(t, err)
	assert.Equal(t, Draft{}, d)

	_, err = h.ws.Compose(ctx, ann.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendFollowUp_Now(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")
	h.clock = base.Add(time.Hour)

	res, err := h.ws.SendFollowUp(ctx, SendRequest{
		LeadID:  ann.ID,
		Subject: "Quick question",
		Body:    `<p>See <a href="https://acme.io">this</a></p>`,
	})
	require.NoError(t, err)
	assert.False(t, res.Scheduled)
	assert.Equal(t, "id-2", res.EmailID)

	require.Len(t, h.mailer.sent, 1)
	sent := h.mailer.sent[0]
	assert.Equal(t, "ann@acme.io", sent.To)
	assert.Contains(t, sent.HTML, `data-email-id="id-2"`)
	assert.Contains(t, sent.HTML, `data-trackable-pixel="true"`)

	assert.Equal(t, model.StatusContacted, res.Lead.Status)
	assert.Equal(t, 1, res.Lead.FollowUpCount)
	assert.Equal(t, "\n--- Follow-up ---\nEmail sent at 3/1/2024, 10:00:00 AM\nSubject: Quick question\n--- End Follow-up ---", res.Lead.Notes)

	details, ok := res.Activity.Details.(model.EmailSentDetails)
	require.True(t, ok)
	assert.Equal(t, "id-2", details.EmailID)
	assert.Equal(t, "Email sent", details.Note)
	assert.Equal(t, sent.HTML, details.Body)
}

func TestSendFollowUp_DeliveryFailureRecordsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")
	h.mailer.err = errors.New("relay down")

	_, err := h.ws.SendFollowUp(ctx, SendRequest{LeadID: ann.ID, Subject: "s", Body: "b"})
	assert.ErrorContains(t, err, "relay down")

	got, _ := h.ws.GetLead(ctx, ann.ID)
	assert.Equal(t, model.StatusNew, got.Status)
	assert.Len(t, h.ws.activities.List(ctx, ann.ID), 1)

	_, err = h.ws.SendFollowUp(ctx, SendRequest{LeadID: ann.ID, Subject: "s"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSendFollowUp_ScheduledThenDelivered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")

	at := base.Add(2 * time.Hour)
	res, err := h.ws.SendFollowUp(ctx, SendRequest{LeadID: ann.ID, Subject: "Later", Body: "<p>b</p>", ScheduledAt: &at})
	require.NoError(t, err)
	assert.True(t, res.Scheduled)
	assert.Equal(t, 0, res.Lead.FollowUpCount)
	assert.Equal(t, model.StatusContacted, res.Lead.Status)
	assert.Contains(t, res.Lead.Notes, "Email scheduled for 3/1/2024, 11:00:00 AM")
	assert.Empty(t, h.mailer.sent)

	queue := h.ws.ScheduledEmails(ctx)
	require.Len(t, queue, 1)
	assert.Equal(t, res.EmailID, queue[0].EmailID)

	n, err := h.ws.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "not due yet")

	h.clock = at
	h.mailer.err = errors.New("relay down")
	n, err = h.ws.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	queue = h.ws.ScheduledEmails(ctx)
	require.Len(t, queue, 1)
	assert.Equal(t, 1, queue[0].Attempts)
	assert.Equal(t, "relay down", queue[0].LastErr)

	h.mailer.err = nil
	n, err = h.ws.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, h.ws.ScheduledEmails(ctx))

	got, _ := h.ws.GetLead(ctx, ann.ID)
	assert.Equal(t, 1, got.FollowUpCount)

	last, ok := h.ws.activities.Last(ctx, ann.ID)
	require.True(t, ok)
	assert.Equal(t, model.NoteAddedDetails{Note: "Scheduled email sent: Later"}, last.Details)
}

func TestCancelScheduled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")
	at := base.Add(time.Hour)

	_, err := h.ws.SendFollowUp(ctx, SendRequest{LeadID: ann.ID, Subject: "s", Body: "b", ScheduledAt: &at})
	require.NoError(t, err)
	queue := h.ws.ScheduledEmails(ctx)
	require.Len(t, queue, 1)

	require.NoError(t, h.ws.CancelScheduled(ctx, queue[0].ID))
	assert.Empty(t, h.ws.ScheduledEmails(ctx))
	assert.ErrorIs(t, h.ws.CancelScheduled(ctx, queue[0].ID), ErrNotFound)
}

func TestSimulateOpenAndClick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")

	added, err := h.ws.SimulateOpen(ctx, ann.ID, "E1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = h.ws.SimulateOpen(ctx, ann.ID, "E1")
	require.NoError(t, err)
	assert.False(t, added)

	a, err := h.ws.RecordClick(ctx, ann.ID, "E1", "https://acme.io")
	require.NoError(t, err)
	assert.Equal(t, model.LinkClickedDetails{URL: "https://acme.io", EmailID: "E1"}, a.Details)

	_, err = h.ws.SimulateOpen(ctx, "missing", "E1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTemplates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ws.SaveTemplate(ctx, model.Template{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	tmpl, err := h.ws.SaveTemplate(ctx, model.Template{Name: "A", Subject: "s", Body: "b"})
	require.NoError(t, err)
	tmpl.Name = "B"
	_, err = h.ws.SaveTemplate(ctx, tmpl)
	require.NoError(t, err)

	list := h.ws.ListTemplates(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].Name)

	require.NoError(t, h.ws.DeleteTemplate(ctx, tmpl.ID))
	assert.Empty(t, h.ws.ListTemplates(ctx))
	assert.ErrorIs(t, h.ws.DeleteTemplate(ctx, tmpl.ID), ErrNotFound)

	lines, err := h.ws.SuggestSubjectLines(ctx, "body")
	require.NoError(t, err)
	assert.Empty(t, lines)
	_, err = h.ws.GenerateBody(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDiscovery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.ws.Discover(ctx, "John", "Doe", "acme.io")
	require.NoError(t, err)
	assert.Len(t, res.Emails, 5)
	assert.Contains(t, res.CompanyInfo, "Summary for acme.io")

	lead, err := h.ws.AddDiscoveredLead(ctx, res, res.Emails[0])
	require.NoError(t, err)
	assert.Equal(t, "Acme", lead.CompanyName)
	assert.Equal(t, SourceDiscovery, lead.Source)
	assert.Equal(t, model.StatusNew, lead.Status)
	assert.Equal(t, "https://acme.io", lead.CompanyInfo.Website)
	assert.Equal(t, res.CompanyInfo, lead.Notes)

	_, err = h.ws.GetLead(ctx, lead.ID)
	assert.NoError(t, err)

	_, err = h.ws.Discover(ctx, "John", "", "acme.io")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompanyNameFromDomain(t *testing.T) {
	assert.Equal(t, "Acme", CompanyNameFromDomain("acme.io"))
	assert.Equal(t, "Example", CompanyNameFromDomain("example.co.uk"))
	assert.Equal(t, "Localhost", CompanyNameFromDomain("localhost"))
	assert.Equal(t, "", CompanyNameFromDomain(""))
}

func TestInsights(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.addLead(t, "Ann", "Lee", "Acme")

	got, err := h.ws.Insights(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, got.Score)
	assert.True(t, strings.HasPrefix(got.Strategy, "Lead: Ann Lee (N/A) at Acme"))
}

func TestComputeAnalytics(t *testing.T) {
	leads := []model.Lead{
		{Status: model.StatusNew, Source: "Manual"},
		{Status: model.StatusContacted, Source: "CSV Import"},
		{Status: model.StatusReplied, Source: ""},
		{Status: model.StatusReplied, Source: "Manual"},
		{Status: model.StatusClosed, Source: "CSV Import"},
		{Status: model.StatusContacted, Source: "Manual"},
	}

	got := ComputeAnalytics(leads)
	assert.Equal(t, Analytics{
		TotalLeads:   6,
		Contacted:    5,
		Replied:      2,
		ResponseRate: "40.0",
		StatusDistribution: []Count{
			{Name: "New", Count: 1},
			{Name: "Contacted", Count: 2},
			{Name: "Replied", Count: 2},
			{Name: "Closed", Count: 1},
		},
		SourceDistribution: []Count{
			{Name: "Manual", Count: 3},
			{Name: "CSV Import", Count: 2},
			{Name: "Unknown", Count: 1},
		},
	}, got)

	empty := ComputeAnalytics(nil)
	assert.Equal(t, "0.0", empty.ResponseRate)
	assert.Empty(t, empty.StatusDistribution)

	third := ComputeAnalytics([]model.Lead{
		{Status: model.StatusReplied}, {Status: model.StatusContacted}, {Status: model.StatusContacted},
	})
	assert.Equal(t, "33.3", third.ResponseRate)
}

func TestChats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	chats := h.ws.Chats

	id, history := chats.Open()
	assert.Equal(t, []model.ChatMessage{
		{Role: model.ChatRoleModel, Text: ChatGreeting},
		{Role: model.ChatRoleModel, Text: ChatUnavailable},
	}, history)

	reply, history, err := chats.Send(ctx, id, "How do I import?", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ChatMessage{Role: model.ChatRoleModel, Text: ChatErrorReply}, reply)
	assert.Len(t, history, 4)

	_, _, err = chats.Send(ctx, id, " ", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	chats.Close(id)
	_, err = chats.History(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChats_ExpiresIdleSessions(t *testing.T) {
	chats := NewChats(gateway.New(nil, logger.NewNop()), logger.NewNop())
	clock := base
	chats.now = func() time.Time { return clock }

	a, _ := chats.Open()
	clock = clock.Add(20 * time.Minute)
	_, err := chats.History(a)
	require.NoError(t, err)

	clock = clock.Add(20 * time.Minute)
	b, _ := chats.Open()
	assert.Equal(t, 2, chats.Len(), "a was used 20 minutes ago")

	clock = clock.Add(ChatIdleTTL + time.Minute)
	c, _ := chats.Open()
	assert.Equal(t, 1, chats.Len())

	for _, id := range []string{a, b} {
		_, err := chats.History(id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err = chats.History(c)
	assert.NoError(t, err)
}

func TestChats_CapsSessions(t *testing.T) {
	chats := NewChats(gateway.New(nil, logger.NewNop()), logger.NewNop())
	clock := base
	chats.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}

	first, _ := chats.Open()
	for i := 1; i < MaxChatSessions; i++ {
		chats.Open()
	}
	require.Equal(t, MaxChatSessions, chats.Len())

	chats.Open()
	assert.Equal(t, MaxChatSessions, chats.Len())
	_, err := chats.History(first)
	assert.ErrorIs(t, err, ErrNotFound, "least recently used session is evicted")
}

func TestTrackClick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	lead, _, err := h.ws.SaveLead(ctx, model.Lead{FirstName: "Ann", LastName: "Lee", Email: "ann@acme.io"})
	require.NoError(t, err)
	sent, err := h.ws.SendFollowUp(ctx, SendRequest{
		LeadID:  lead.ID,
		Subject: "Hi",
		Body:    `<a href="https://acme.io/demo">demo</a>`,
	})
	require.NoError(t, err)

	act, err := h.ws.TrackClick(ctx, lead.ID, sent.EmailID, "https://acme.io/demo")
	require.NoError(t, err)
	assert.Equal(t, model.ActivityLinkClicked, act.Type())
	assert.Equal(t, sent.EmailID, act.EmailID())

	_, err = h.ws.TrackClick(ctx, lead.ID, sent.EmailID, "https://evil.example")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.ws.TrackClick(ctx, lead.ID, "other-email", "https://acme.io/demo")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.ws.TrackClick(ctx, "nobody", sent.EmailID, "https://acme.io/demo")
	assert.ErrorIs(t, err, ErrNotFound)
}
