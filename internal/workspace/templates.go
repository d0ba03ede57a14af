package workspace

import (
	"context"
	"fmt"

	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/store"
)

func (w *Workspace) templates(ctx context.Context) []model.Template {
	var list []model.Template
	w.load(ctx, store.KeyTemplates, &list)
	if list == nil {
		return []model.Template{}
	}
	return list
}

// ListTemplates returns every template in creation order.
func (w *Workspace) ListTemplates(ctx context.Context) []model.Template {
	return w.templates(ctx)
}

// GetTemplate returns one template.
func (w *Workspace) GetTemplate(ctx context.Context, id string) (model.Template, error) {
	for _, t := range w.templates(ctx) {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Template{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
}

// SaveTemplate inserts a template, or replaces the one with the same id.
func (w *Workspace) SaveTemplate(ctx context.Context, t model.Template) (model.Template, error) {
	if t.Name == "" || t.Subject == "" || t.Body == "" {
		return model.Template{}, fmt.Errorf("%w: name, subject and body are required", ErrInvalidInput)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.templates(ctx)
	replaced := false
	if t.ID != "" {
		for i := range list {
			if list[i].ID == t.ID {
				list[i] = t
				replaced = true
				break
			}
		}
	} else {
		t.ID = w.newID()
	}
	if !replaced {
		list = append(list, t)
	}

	if err := w.save(ctx, store.KeyTemplates, list); err != nil {
		return model.Template{}, err
	}
	w.publish(store.KeyTemplates, KindSaved)
	return t, nil
}

// DeleteTemplate removes a template.
func (w *Workspace) DeleteTemplate(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.templates(ctx)
	for i := range list {
		if list[i].ID != id {
			continue
		}
		if err := w.save(ctx, store.KeyTemplates, append(list[:i], list[i+1:]...)); err != nil {
			return err
		}
		w.publish(store.KeyTemplates, KindDeleted)
		return nil
	}
	return fmt.Errorf("template %s: %w", id, ErrNotFound)
}

// SuggestSubjectLines asks the gateway for subject lines matching a body.
func (w *Workspace) SuggestSubjectLines(ctx context.Context, body string) ([]string, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidInput)
	}
	return w.gateway.SubjectLines(ctx, body), nil
}

// GenerateBody asks the gateway for a template body from a short prompt.
func (w *Workspace) GenerateBody(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	return w.gateway.EmailBody(ctx, prompt), nil
}
