package workspace

import (
	"context"
	"fmt"

	"github.com/leadproton/server/internal/model"
)

// Count is one slice of a distribution.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Analytics summarizes the pipeline.
type Analytics struct {
	TotalLeads int `json:"totalLeads"`
	Contacted  int `json:"contacted"`
	Replied    int `json:"replied"`
	// ResponseRate is replied/contacted as a percentage with one decimal.
	ResponseRate       string  `json:"responseRate"`
	StatusDistribution []Count `json:"statusDistribution"`
	SourceDistribution []Count `json:"sourceDistribution"`
}

// Analytics computes pipeline figures over the whole lead book.
func (w *Workspace) Analytics(ctx context.Context) Analytics {
	return ComputeAnalytics(w.leads(ctx))
}

// ComputeAnalytics derives the figures for a lead list. Contacted counts
// every lead past New. Statuses appear in pipeline order and only when
// non-zero; sources appear in first-seen order with "Unknown" for blanks.
func ComputeAnalytics(leads []model.Lead) Analytics {
	a := Analytics{
		TotalLeads:         len(leads),
		StatusDistribution: []Count{},
		SourceDistribution: []Count{},
	}

	byStatus := make(map[model.LeadStatus]int)
	sourceIdx := make(map[string]int)
	for _, l := range leads {
		byStatus[l.Status]++
		if l.Status != model.StatusNew {
			a.Contacted++
		}
		if l.Status == model.StatusReplied {
			a.Replied++
		}

		src := l.Source
		if src == "" {
			src = "Unknown"
		}
		if i, ok := sourceIdx[src]; ok {
			a.SourceDistribution[i].Count++
		} else {
			sourceIdx[src] = len(a.SourceDistribution)
			a.SourceDistribution = append(a.SourceDistribution, Count{Name: src, Count: 1})
		}
	}

	for _, st := range model.Statuses {
		if n := byStatus[st]; n > 0 {
			a.StatusDistribution = append(a.StatusDistribution, Count{Name: string(st), Count: n})
		}
	}

	a.ResponseRate = "0.0"
	if a.Contacted > 0 {
		a.ResponseRate = fmt.Sprintf("%.1f", float64(a.Replied)/float64(a.Contacted)*100)
	}
	return a
}
