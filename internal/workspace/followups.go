package workspace

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/leadproton/server/internal/mail"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/store"
	"github.com/leadproton/server/internal/tracking"
	"github.com/leadproton/server/pkg/metrics"
)

// noteTimeLayout renders times in follow-up notes.
const noteTimeLayout = "1/2/2006, 3:04:05 PM"

// Draft is a composed subject and body.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Compose fills a template's tokens with the lead's fields. An empty
// templateID yields an empty draft.
func (w *Workspace) Compose(ctx context.Context, leadID, templateID string) (Draft, error) {
	lead, err := w.GetLead(ctx, leadID)
	if err != nil {
		return Draft{}, err
	}
	if templateID == "" {
		return Draft{}, nil
	}
	tmpl, err := w.GetTemplate(ctx, templateID)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		Subject: tracking.SubstituteTokens(tmpl.Subject, lead),
		Body:    tracking.SubstituteTokens(tmpl.Body, lead),
	}, nil
}

// Personalize rewrites a draft body for the lead through the AI gateway.
func (w *Workspace) Personalize(ctx context.Context, leadID, body string) (string, error) {
	if body == "" {
		return "", fmt.Errorf("%w: body is required", ErrInvalidInput)
	}
	lead, err := w.GetLead(ctx, leadID)
	if err != nil {
		return "", err
	}
	return w.gateway.PersonalizeEmail(ctx, lead, body), nil
}

// SendRequest is a follow-up to send now or schedule.
type SendRequest struct {
	LeadID  string `json:"leadId"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// ScheduledAt defers delivery to the scheduler when set.
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

// SendResult describes a sent or scheduled follow-up.
type SendResult struct {
	EmailID   string             `json:"emailId"`
	Scheduled bool               `json:"scheduled"`
	Lead      model.Lead         `json:"lead"`
	Activity  model.LeadActivity `json:"activity"`
}

// SendFollowUp injects tracking into the body, then delivers it now or
// queues it for req.ScheduledAt. It records an EmailSent activity, appends a
// follow-up block to the lead's notes and moves New leads to Contacted.
// followUpCount grows only for immediate sends; the scheduler counts the
// rest on delivery. A failed immediate delivery records nothing.
func (w *Workspace) SendFollowUp(ctx context.Context, req SendRequest) (SendResult, error) {
	if req.Subject == "" || req.Body == "" {
		return SendResult{}, fmt.Errorf("%w: subject and body are required", ErrInvalidInput)
	}
	lead, err := w.GetLead(ctx, req.LeadID)
	if err != nil {
		return SendResult{}, err
	}

	emailID := w.newID()
	tracked := w.tracker.Inject(req.Body, lead.ID, emailID)
	now := w.now()
	sendNow := req.ScheduledAt == nil

	var note, action string
	if sendNow {
		if err := w.mailer.Send(ctx, mail.Message{To: lead.Email, Subject: req.Subject, HTML: tracked}); err != nil {
			metrics.EmailsTotal.WithLabelValues(w.mailer.Name(), "failed").Inc()
			return SendResult{}, fmt.Errorf("failed to deliver follow-up to %s: %w", lead.Email, err)
		}
		metrics.EmailsTotal.WithLabelValues(w.mailer.Name(), "sent").Inc()
		note = "Email sent"
		action = "Email sent at " + now.Format(noteTimeLayout)
	} else {
		at := req.ScheduledAt.UTC()
		if err := w.enqueue(ctx, model.ScheduledEmail{
			ID:      w.newID(),
			LeadID:  lead.ID,
			EmailID: emailID,
			To:      lead.Email,
			Subject: req.Subject,
			Body:    tracked,
			SendAt:  at,
		}); err != nil {
			return SendResult{}, err
		}
		metrics.EmailsTotal.WithLabelValues("scheduled", "queued").Inc()
		note = "Email scheduled for " + at.Format(noteTimeLayout)
		action = note
	}

	act := w.activities.Append(ctx, lead.ID, model.EmailSentDetails{
		Subject: req.Subject,
		Body:    tracked,
		EmailID: emailID,
		Note:    note,
	})

	block := fmt.Sprintf("\n--- Follow-up ---\n%s\nSubject: %s\n--- End Follow-up ---", action, req.Subject)
	updated, err := w.updateLead(ctx, lead.ID, func(l *model.Lead) {
		if l.Status == model.StatusNew {
			l.Status = model.StatusContacted
		}
		l.Notes += block
		if sendNow {
			l.FollowUpCount++
		}
	})
	if err != nil {
		return SendResult{}, err
	}

	w.logger.Info("follow-up recorded",
		zap.String("lead_id", lead.ID),
		zap.String("email_id", emailID),
		zap.Bool("scheduled", !sendNow),
	)
	return SendResult{EmailID: emailID, Scheduled: !sendNow, Lead: updated, Activity: act}, nil
}

// updateLead applies fn to one stored lead and persists the book.
func (w *Workspace) updateLead(ctx context.Context, id string, fn func(*model.Lead)) (model.Lead, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	leads := w.leads(ctx)
	i := indexOf(leads, id)
	if i < 0 {
		return model.Lead{}, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	fn(&leads[i])
	leads[i].Normalize()
	if err := w.saveLeads(ctx, leads, id); err != nil {
		return model.Lead{}, err
	}
	return leads[i], nil
}

// SimulateOpen records the first open of an email. It reports whether an
// activity was added.
func (w *Workspace) SimulateOpen(ctx context.Context, leadID, emailID string) (bool, error) {
	if emailID == "" {
		return false, fmt.Errorf("%w: emailId is required", ErrInvalidInput)
	}
	if _, err := w.GetLead(ctx, leadID); err != nil {
		return false, err
	}
	return w.activities.AppendOpenOnce(ctx, leadID, emailID), nil
}

// RecordClick records a click on a tracked link.
func (w *Workspace) RecordClick(ctx context.Context, leadID, emailID, url string) (model.LeadActivity, error) {
	if url == "" {
		return model.LeadActivity{}, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if _, err := w.GetLead(ctx, leadID); err != nil {
		return model.LeadActivity{}, err
	}
	return w.activities.Append(ctx, leadID, model.LinkClickedDetails{URL: url, EmailID: emailID}), nil
}

// TrackClick records a click that arrived through the public collector. The
// email must have been sent to the lead and must carry a tracked link to
// target; anything else is ErrNotFound so the collector never redirects to
// an arbitrary URL.
func (w *Workspace) TrackClick(ctx context.Context, leadID, emailID, target string) (model.LeadActivity, error) {
	if _, err := w.GetLead(ctx, leadID); err != nil {
		return model.LeadActivity{}, err
	}
	sent, ok := w.sentEmail(ctx, leadID, emailID)
	if !ok {
		return model.LeadActivity{}, fmt.Errorf("email %s of lead %s: %w", emailID, leadID, ErrNotFound)
	}
	if !slices.Contains(tracking.Links(sent.Body), target) {
		return model.LeadActivity{}, fmt.Errorf("link in email %s: %w", emailID, ErrNotFound)
	}
	return w.RecordClick(ctx, leadID, emailID, target)
}

func (w *Workspace) sentEmail(ctx context.Context, leadID, emailID string) (model.EmailSentDetails, bool) {
	if emailID == "" {
		return model.EmailSentDetails{}, false
	}
	for _, a := range w.activities.List(ctx, leadID) {
		if d, ok := a.Details.(model.EmailSentDetails); ok && d.EmailID == emailID {
			return d, true
		}
	}
	return model.EmailSentDetails{}, false
}

func (w *Workspace) scheduled(ctx context.Context) []model.ScheduledEmail {
	var queue []model.ScheduledEmail
	w.load(ctx, store.KeyScheduledEmails, &queue)
	return queue
}

func (w *Workspace) saveScheduled(ctx context.Context, queue []model.ScheduledEmail) error {
	if queue == nil {
		queue = []model.ScheduledEmail{}
	}
	if err := w.save(ctx, store.KeyScheduledEmails, queue); err != nil {
		return err
	}
	w.publish(store.KeyScheduledEmails, KindSaved)
	return nil
}

func (w *Workspace) enqueue(ctx context.Context, e model.ScheduledEmail) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveScheduled(ctx, append(w.scheduled(ctx), e))
}

// ScheduledEmails lists queued follow-ups in delivery order.
func (w *Workspace) ScheduledEmails(ctx context.Context) []model.ScheduledEmail {
	queue := w.scheduled(ctx)
	if queue == nil {
		return []model.ScheduledEmail{}
	}
	return queue
}

// CancelScheduled removes a queued follow-up.
func (w *Workspace) CancelScheduled(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	queue := w.scheduled(ctx)
	for i, e := range queue {
		if e.ID == id {
			return w.saveScheduled(ctx, append(queue[:i], queue[i+1:]...))
		}
	}
	return fmt.Errorf("scheduled email %s: %w", id, ErrNotFound)
}

// DeliverDue sends every queued follow-up due at the current time. Each
// delivery increments the lead's followUpCount and records a NoteAdded
// activity. Failed deliveries stay queued for the next call. It returns the
// number of emails sent.
func (w *Workspace) DeliverDue(ctx context.Context) (int, error) {
	now := w.now()

	w.mu.Lock()
	var due []model.ScheduledEmail
	for _, e := range w.scheduled(ctx) {
		if e.Due(now) {
			due = append(due, e)
		}
	}
	w.mu.Unlock()
	if len(due) == 0 {
		return 0, nil
	}

	done := make(map[string]bool, len(due))
	failed := make(map[string]string)
	var delivered []model.ScheduledEmail
	for _, e := range due {
		if err := ctx.Err(); err != nil {
			break
		}
		log := w.logger.WithLead(e.LeadID)
		if _, err := w.GetLead(ctx, e.LeadID); err != nil {
			log.Warn("dropping scheduled email for missing lead", zap.String("id", e.ID))
			done[e.ID] = true
			continue
		}
		err := w.mailer.Send(ctx, mail.Message{To: e.To, Subject: e.Subject, HTML: e.Body})
		if err != nil {
			log.Warn("scheduled delivery failed", zap.String("id", e.ID), zap.Error(err))
			metrics.EmailsTotal.WithLabelValues(w.mailer.Name(), "failed").Inc()
			failed[e.ID] = err.Error()
			continue
		}
		metrics.EmailsTotal.WithLabelValues(w.mailer.Name(), "sent").Inc()
		done[e.ID] = true
		delivered = append(delivered, e)
	}

	w.mu.Lock()
	queue := w.scheduled(ctx)
	kept := queue[:0]
	for _, e := range queue {
		if done[e.ID] {
			continue
		}
		if msg, ok := failed[e.ID]; ok {
			e.Attempts++
			e.LastErr = msg
		}
		kept = append(kept, e)
	}
	err := w.saveScheduled(ctx, kept)
	w.mu.Unlock()
	if err != nil {
		return 0, err
	}

	for _, e := range delivered {
		if _, err := w.updateLead(ctx, e.LeadID, func(l *model.Lead) { l.FollowUpCount++ }); err != nil {
			w.logger.WithLead(e.LeadID).Warn("failed to update lead after delivery", zap.Error(err))
		}
		w.activities.Append(ctx, e.LeadID, model.NoteAddedDetails{Note: "Scheduled email sent: " + e.Subject})
	}
	return len(delivered), nil
}
