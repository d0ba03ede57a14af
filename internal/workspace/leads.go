package workspace

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leadproton/server/internal/csvcodec"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/store"
)

// Sort keys accepted by ListLeads besides the scalar lead fields.
const (
	SortLastActivity = "lastActivity"
	defaultSortKey   = "createdAt"
)

// ListQuery filters and orders the lead book.
type ListQuery struct {
	// Search matches name, email or company, case-insensitively.
	Search string
	// SortBy is a lead field name or SortLastActivity. Empty sorts by
	// createdAt, newest first.
	SortBy string
	Desc   bool
}

// LeadView is a lead with the time of its most recent activity.
type LeadView struct {
	model.Lead
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
}

// ListLeads returns the leads matching q in the requested order.
func (w *Workspace) ListLeads(ctx context.Context, q ListQuery) ([]LeadView, error) {
	sortBy, desc := q.SortBy, q.Desc
	if sortBy == "" {
		sortBy, desc = defaultSortKey, true
	}
	if sortBy != SortLastActivity && !sortable(sortBy) {
		return nil, fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, sortBy)
	}

	last := w.activities.LastTimes(ctx)
	views := make([]LeadView, 0)
	for _, l := range w.leads(ctx) {
		if !matches(l, q.Search) {
			continue
		}
		v := LeadView{Lead: l}
		if ts, ok := last[l.ID]; ok {
			v.LastActivityAt = &ts
		}
		views = append(views, v)
	}

	slices.SortStableFunc(views, func(a, b LeadView) int {
		c := compareBy(sortBy, a, b)
		if desc {
			return -c
		}
		return c
	})
	return views, nil
}

func matches(l model.Lead, search string) bool {
	if search == "" {
		return true
	}
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(l.FirstName+" "+l.LastName), s) ||
		strings.Contains(strings.ToLower(l.Email), s) ||
		strings.Contains(strings.ToLower(l.CompanyName), s)
}

var stringFields = map[string]func(model.Lead) string{
	"id":          func(l model.Lead) string { return l.ID },
	"firstName":   func(l model.Lead) string { return l.FirstName },
	"lastName":    func(l model.Lead) string { return l.LastName },
	"email":       func(l model.Lead) string { return l.Email },
	"companyName": func(l model.Lead) string { return l.CompanyName },
	"role":        func(l model.Lead) string { return l.Role },
	"status":      func(l model.Lead) string { return string(l.Status) },
	"source":      func(l model.Lead) string { return l.Source },
	"notes":       func(l model.Lead) string { return l.Notes },
}

func sortable(key string) bool {
	_, ok := stringFields[key]
	return ok || key == "createdAt" || key == "followUpCount"
}

func compareBy(key string, a, b LeadView) int {
	switch key {
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "followUpCount":
		return cmp.Compare(a.FollowUpCount, b.FollowUpCount)
	case SortLastActivity:
		var at, bt time.Time
		if a.LastActivityAt != nil {
			at = *a.LastActivityAt
		}
		if b.LastActivityAt != nil {
			bt = *b.LastActivityAt
		}
		return at.Compare(bt)
	}
	field := stringFields[key]
	return strings.Compare(field(a.Lead), field(b.Lead))
}

// GetLead returns one lead.
func (w *Workspace) GetLead(ctx context.Context, id string) (model.Lead, error) {
	leads := w.leads(ctx)
	i := indexOf(leads, id)
	if i < 0 {
		return model.Lead{}, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return leads[i], nil
}

// SaveLead inserts a new lead or replaces an existing one with the same id.
// New leads get an id, a creation time and a Created activity. It reports
// whether the lead was inserted.
func (w *Workspace) SaveLead(ctx context.Context, lead model.Lead) (model.Lead, bool, error) {
	if lead.FirstName == "" || lead.LastName == "" || lead.Email == "" {
		return model.Lead{}, false, fmt.Errorf("%w: firstName, lastName and email are required", ErrInvalidInput)
	}
	if lead.Status != "" && !lead.Status.Valid() {
		return model.Lead{}, false, fmt.Errorf("%w: %w %q", ErrInvalidInput, model.ErrInvalidStatus, lead.Status)
	}

	w.mu.Lock()
	leads := w.leads(ctx)
	i := -1
	if lead.ID != "" {
		i = indexOf(leads, lead.ID)
	}
	created := i < 0

	if created {
		if lead.ID == "" {
			lead.ID = w.newID()
		}
		if lead.CreatedAt.IsZero() {
			lead.CreatedAt = w.now()
		}
		if lead.Source == "" {
			lead.Source = "Manual"
		}
	} else if lead.CreatedAt.IsZero() {
		lead.CreatedAt = leads[i].CreatedAt
	}
	lead.Normalize()

	if created {
		leads = append(leads, lead)
	} else {
		leads[i] = lead
	}
	err := w.saveLeads(ctx, leads, lead.ID)
	w.mu.Unlock()
	if err != nil {
		return model.Lead{}, false, err
	}

	if created {
		w.activities.Append(ctx, lead.ID, model.CreatedDetails{Note: "Lead created manually."})
	}
	return lead, created, nil
}

// DeleteLeads removes the given leads and their activity logs. It returns
// the number of leads removed.
func (w *Workspace) DeleteLeads(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	w.mu.Lock()
	leads := w.leads(ctx)
	kept := leads[:0]
	var removed []string
	for _, l := range leads {
		if drop[l.ID] {
			removed = append(removed, l.ID)
			continue
		}
		kept = append(kept, l)
	}
	var err error
	if len(removed) > 0 {
		err = w.save(ctx, store.KeyLeads, kept)
	}
	w.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if len(removed) > 0 {
		w.publish(store.KeyLeads, KindDeleted, removed...)
	}
	w.activities.DeleteAll(ctx, ids...)
	return len(removed), nil
}

// BulkStatus sets the status of the given leads and returns how many were
// updated.
func (w *Workspace) BulkStatus(ctx context.Context, ids []string, status string) (int, error) {
	st, err := model.ParseStatus(status)
	if err != nil {
		return 0, fmt.Errorf("%w: %w %q", ErrInvalidInput, err, status)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	leads := w.leads(ctx)
	var updated []string
	for i := range leads {
		if want[leads[i].ID] {
			leads[i].Status = st
			updated = append(updated, leads[i].ID)
		}
	}
	if len(updated) == 0 {
		return 0, nil
	}
	if err := w.saveLeads(ctx, leads, updated...); err != nil {
		return 0, err
	}
	return len(updated), nil
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Added      int                 `json:"added"`
	Duplicates int                 `json:"duplicates"`
	Skipped    []csvcodec.RowError `json:"skipped"`
	Leads      []model.Lead        `json:"leads"`
}

// ImportCSV adds the leads of a CSV file whose ids are not in the book yet.
// Each added lead gets a Created activity naming the file.
func (w *Workspace) ImportCSV(ctx context.Context, r io.Reader, filename string) (ImportResult, error) {
	parsed, err := w.csv.Import(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	res := ImportResult{Skipped: parsed.Skipped, Leads: []model.Lead{}}
	if res.Skipped == nil {
		res.Skipped = []csvcodec.RowError{}
	}

	w.mu.Lock()
	leads := w.leads(ctx)
	seen := make(map[string]bool, len(leads))
	for _, l := range leads {
		seen[l.ID] = true
	}
	var ids []string
	for _, l := range parsed.Leads {
		if seen[l.ID] {
			res.Duplicates++
			continue
		}
		seen[l.ID] = true
		leads = append(leads, l)
		res.Leads = append(res.Leads, l)
		ids = append(ids, l.ID)
	}
	if len(ids) > 0 {
		err = w.saveLeads(ctx, leads, ids...)
	}
	w.mu.Unlock()
	if err != nil {
		return ImportResult{}, err
	}

	note := "Lead imported from " + filename
	for _, id := range ids {
		w.activities.Append(ctx, id, model.CreatedDetails{Note: note})
	}
	res.Added = len(ids)

	w.logger.Info("leads imported",
		zap.String("file", filename),
		zap.Int("added", res.Added),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// ExportCSV writes the selected leads, or every lead when ids is empty, in
// book order.
func (w *Workspace) ExportCSV(ctx context.Context, out io.Writer, ids ...string) error {
	leads := w.leads(ctx)
	if len(ids) > 0 {
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		leads = slices.DeleteFunc(leads, func(l model.Lead) bool { return !want[l.ID] })
	}
	return w.csv.Export(out, leads)
}

// AddNote appends a NoteAdded activity to a lead.
func (w *Workspace) AddNote(ctx context.Context, leadID, note string) (model.LeadActivity, error) {
	if strings.TrimSpace(note) == "" {
		return model.LeadActivity{}, fmt.Errorf("%w: note is required", ErrInvalidInput)
	}
	if _, err := w.GetLead(ctx, leadID); err != nil {
		return model.LeadActivity{}, err
	}
	return w.activities.Append(ctx, leadID, model.NoteAddedDetails{Note: note}), nil
}

// LeadActivities returns a lead's activity log, most recent first.
func (w *Workspace) LeadActivities(ctx context.Context, leadID string) ([]model.LeadActivity, error) {
	if _, err := w.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	return w.activities.List(ctx, leadID), nil
}
