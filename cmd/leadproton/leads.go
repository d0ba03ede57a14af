package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/workspace"
)

func newLeadsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List, edit, import and export leads",
	}
	cmd.AddCommand(
		newLeadsListCmd(c),
		newLeadsAddCmd(c),
		newLeadsShowCmd(c),
		newLeadsDeleteCmd(c),
		newLeadsStatusCmd(c),
		newLeadsImportCmd(c),
		newLeadsExportCmd(c),
		newLeadsNoteCmd(c),
		newLeadsInsightsCmd(c),
	)
	return cmd
}

func newLeadsListCmd(c *cli) *cobra.Command {
	var q workspace.ListQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			leads, err := c.ws().ListLeads(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(leads) == 0 {
				c.printf("%s\n", mutedStyle.Render("No leads."))
				return nil
			}

			t := newTable("ID", "NAME", "EMAIL", "COMPANY", "STATUS", "FOLLOW-UPS", "LAST ACTIVITY")
			for _, l := range leads {
				last := "-"
				if l.LastActivityAt != nil {
					last = l.LastActivityAt.Local().Format("2006-01-02 15:04")
				}
				t.add(l.ID, l.FullName(), l.Email, l.CompanyName, statusBadge(l.Status), strconv.Itoa(l.FollowUpCount), last)
			}
			c.printf("%s", t)
			c.printf("%s\n", mutedStyle.Render(fmt.Sprintf("%d lead(s)", len(leads))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Search, "search", "s", "", "match name, email or company")
	cmd.Flags().StringVar(&q.SortBy, "sort", "", "sort by a lead field or lastActivity (default createdAt, newest first)")
	cmd.Flags().BoolVar(&q.Desc, "desc", false, "sort descending")
	return cmd
}

func newLeadsAddCmd(c *cli) *cobra.Command {
	var (
		lead model.Lead
		tags []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a lead manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			lead.Tags = tags
			saved, _, err := c.ws().SaveLead(cmd.Context(), lead)
			if err != nil {
				return err
			}
			c.printf("%s %s %s\n", titleStyle.Render("Added"), saved.FullName(), mutedStyle.Render(saved.ID))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&lead.FirstName, "first", "", "first name")
	f.StringVar(&lead.LastName, "last", "", "last name")
	f.StringVar(&lead.Email, "email", "", "email address")
	f.StringVar(&lead.CompanyName, "company", "", "company name")
	f.StringVar(&lead.Role, "role", "", "role or title")
	f.StringVar((*string)(&lead.Status), "status", "", "status (default New)")
	f.StringSliceVar(&tags, "tag", nil, "tag, repeatable")
	cmd.MarkFlagRequired("first")
	cmd.MarkFlagRequired("last")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newLeadsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a lead and its activity log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lead, err := c.ws().GetLead(ctx, args[0])
			if err != nil {
				return err
			}
			acts, err := c.ws().LeadActivities(ctx, lead.ID)
			if err != nil {
				return err
			}

			c.printf("%s %s\n", titleStyle.Render(lead.FullName()), statusBadge(lead.Status))
			c.printf("  %s\n  %s", lead.Email, lead.CompanyName)
			if lead.Role != "" {
				c.printf(" (%s)", lead.Role)
			}
			c.printf("\n  source: %s  follow-ups: %d\n", lead.Source, lead.FollowUpCount)
			if len(lead.Tags) > 0 {
				c.printf("  tags: %s\n", strings.Join(lead.Tags, ", "))
			}
			if lead.Notes != "" {
				c.printf("\n%s\n", lead.Notes)
			}

			if len(acts) > 0 {
				c.printf("\n")
				t := newTable("WHEN", "TYPE", "DETAIL")
				for _, a := range acts {
					t.add(a.Timestamp.Local().Format("2006-01-02 15:04:05"), string(a.Type()), activitySummary(a))
				}
				c.printf("%s", t)
			}
			return nil
		},
	}
}

func activitySummary(a model.LeadActivity) string {
	switch d := a.Details.(type) {
	case model.CreatedDetails:
		return d.Note
	case model.EmailSentDetails:
		return d.Subject + " " + mutedStyle.Render(d.Note)
	case model.EmailOpenedDetails:
		return mutedStyle.Render(d.EmailID)
	case model.LinkClickedDetails:
		return d.URL
	case model.NoteAddedDetails:
		return d.Note
	}
	return ""
}

func newLeadsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete leads and their activity logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.ws().DeleteLeads(cmd.Context(), args...)
			if err != nil {
				return err
			}
			c.printf("Deleted %d lead(s)\n", n)
			return nil
		},
	}
}

func newLeadsStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <status> <id>...",
		Short: "Set the status of leads",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.ws().BulkStatus(cmd.Context(), args[1:], args[0])
			if err != nil {
				return err
			}
			c.printf("Updated %d lead(s) to %s\n", n, statusBadge(model.LeadStatus(args[0])))
			return nil
		},
	}
}

func newLeadsImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import leads from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := c.ws().ImportCSV(cmd.Context(), f, filepath.Base(args[0]))
			if err != nil {
				return err
			}
			c.printf("%s %d added, %d duplicate(s), %d skipped\n",
				titleStyle.Render("Imported"), res.Added, res.Duplicates, len(res.Skipped))
			for _, s := range res.Skipped {
				c.printf("  %s\n", errorStyle.Render(fmt.Sprintf("line %d: %s", s.Line, s.Err)))
			}
			return nil
		},
	}
}

func newLeadsExportCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Export leads as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return c.ws().ExportCSV(cmd.Context(), c.out, args...)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := c.ws().ExportCSV(cmd.Context(), f, args...); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")
	return cmd
}

func newLeadsNoteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "note <id> <text>",
		Short: "Add a note to a lead's activity log",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.ws().AddNote(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			c.printf("Note added\n")
			return nil
		},
	}
}

func newLeadsInsightsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "insights <id>",
		Short: "Generate an outreach strategy for a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.ws().Insights(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.printf("%s %d/100\n\n%s\n", titleStyle.Render("Lead score"), res.Score, res.Strategy)
			return nil
		},
	}
}
