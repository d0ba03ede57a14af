package workspace

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/leadproton/server/internal/gateway"
	"github.com/leadproton/server/internal/model"
)

// SourceDiscovery is the source of leads added from discovery results.
const SourceDiscovery = "Discovery Tool"

// DiscoveryResult holds the guessed addresses and company summary for a
// person at a domain.
type DiscoveryResult struct {
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	Domain      string         `json:"domain"`
	Emails      []string       `json:"emails"`
	CompanyInfo string         `json:"companyInfo"`
	Sources     []model.Source `json:"sources"`
}

// Discover runs the email pattern and company info lookups concurrently.
func (w *Workspace) Discover(ctx context.Context, firstName, lastName, domain string) (DiscoveryResult, error) {
	if firstName == "" || lastName == "" || domain == "" {
		return DiscoveryResult{}, fmt.Errorf("%w: firstName, lastName and domain are required", ErrInvalidInput)
	}

	res := DiscoveryResult{FirstName: firstName, LastName: lastName, Domain: domain}

	// Gateway calls never fail, so the group only joins the two lookups.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Emails = w.gateway.EmailPatterns(gctx, firstName, lastName, domain)
		return nil
	})
	var info model.GroundedText
	g.Go(func() error {
		info = w.gateway.CompanyInfo(gctx, domain)
		return nil
	})
	if err := g.Wait(); err != nil {
		return DiscoveryResult{}, err
	}

	res.CompanyInfo = info.Info
	res.Sources = info.Sources
	return res, nil
}

// AddDiscoveredLead stores a New lead for one of the discovered addresses.
func (w *Workspace) AddDiscoveredLead(ctx context.Context, res DiscoveryResult, email string) (model.Lead, error) {
	if email == "" || res.FirstName == "" || res.LastName == "" {
		return model.Lead{}, fmt.Errorf("%w: firstName, lastName and email are required", ErrInvalidInput)
	}

	website := ""
	if d := strings.TrimSpace(res.Domain); d != "" {
		website = "https://" + d
	}
	lead := model.Lead{
		ID:          w.newID(),
		FirstName:   res.FirstName,
		LastName:    res.LastName,
		Email:       email,
		CompanyName: CompanyNameFromDomain(res.Domain),
		Status:      model.StatusNew,
		Tags:        []string{},
		Source:      SourceDiscovery,
		CreatedAt:   w.now(),
		Notes:       res.CompanyInfo,
		CompanyInfo: &model.CompanyInfo{
			Description: res.CompanyInfo,
			Website:     website,
		},
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.saveLeads(ctx, append(w.leads(ctx), lead), lead.ID); err != nil {
		return model.Lead{}, err
	}
	return lead, nil
}

// CompanyNameFromDomain capitalizes the first label of a domain:
// "acme.io" becomes "Acme".
func CompanyNameFromDomain(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	r, size := utf8.DecodeRuneInString(label)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + label[size:]
}

// Insights is the strategic outreach plan for a lead.
func (w *Workspace) Insights(ctx context.Context, leadID string) (model.StrategyResponse, error) {
	lead, err := w.GetLead(ctx, leadID)
	if err != nil {
		return model.StrategyResponse{}, err
	}
	in := gateway.StrategyInput{
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		CompanyName: lead.CompanyName,
		Role:        lead.Role,
	}
	return model.StrategyResponse{
		Strategy: w.gateway.StrategicAnalysis(ctx, in),
		Score:    gateway.ScoreLead(lead.FirstName, lead.LastName, lead.CompanyName, lead.Role),
	}, nil
}

// FindLocation looks up the headquarters of a lead's company near the
// caller's position.
func (w *Workspace) FindLocation(ctx context.Context, leadID string, lat, lng float64) (model.GroundedText, error) {
	lead, err := w.GetLead(ctx, leadID)
	if err != nil {
		return model.GroundedText{}, err
	}
	return w.gateway.CompanyLocation(ctx, lead.CompanyName, lat, lng), nil
}
