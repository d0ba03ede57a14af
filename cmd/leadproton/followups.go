package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadproton/server/internal/workspace"
)

func newFollowUpCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "followup",
		Aliases: []string{"fu"},
		Short:   "Send, schedule and deliver follow-up emails",
	}
	cmd.AddCommand(
		newFollowUpSendCmd(c),
		newFollowUpScheduledCmd(c),
		newFollowUpDeliverCmd(c),
		newFollowUpCancelCmd(c),
	)
	return cmd
}

func newFollowUpSendCmd(c *cli) *cobra.Command {
	var (
		templateID  string
		subject     string
		body        string
		at          string
		personalize bool
	)
	cmd := &cobra.Command{
		Use:   "send <lead-id>",
		Short: "Send a tracked follow-up now, or schedule it with --at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			leadID := args[0]

			if templateID != "" {
				draft, err := c.ws().Compose(ctx, leadID, templateID)
				if err != nil {
					return err
				}
				if subject == "" {
					subject = draft.Subject
				}
				if body == "" {
					body = draft.Body
				}
			}
			if personalize {
				var err error
				if body, err = c.ws().Personalize(ctx, leadID, body); err != nil {
					return err
				}
			}

			req := workspace.SendRequest{LeadID: leadID, Subject: subject, Body: body}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC 3339, e.g. 2024-03-01T09:00:00Z: %w", err)
				}
				req.ScheduledAt = &t
			}

			res, err := c.ws().SendFollowUp(ctx, req)
			if err != nil {
				return err
			}
			verb := "Sent"
			if res.Scheduled {
				verb = "Scheduled"
			}
			c.printf("%s %q to %s %s\n", titleStyle.Render(verb), subject, res.Lead.Email, mutedStyle.Render(res.EmailID))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&templateID, "template", "t", "", "compose from a template")
	f.StringVarP(&subject, "subject", "s", "", "subject line")
	f.StringVarP(&body, "body", "b", "", "HTML body")
	f.StringVar(&at, "at", "", "schedule delivery at an RFC 3339 time")
	f.BoolVar(&personalize, "personalize", false, "rewrite the body for the lead with AI")
	return cmd
}

func newFollowUpScheduledCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduled",
		Short: "List queued follow-ups",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := newTable("ID", "LEAD", "TO", "SUBJECT", "SEND AT", "ATTEMPTS")
			for _, e := range c.ws().ScheduledEmails(cmd.Context()) {
				t.add(e.ID, e.LeadID, e.To, e.Subject, e.SendAt.Local().Format("2006-01-02 15:04"), fmt.Sprint(e.Attempts))
			}
			c.printf("%s", t)
			return nil
		},
	}
}

func newFollowUpDeliverCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Deliver every queued follow-up that is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.ws().DeliverDue(cmd.Context())
			if err != nil {
				return err
			}
			c.printf("Delivered %d email(s)\n", n)
			return nil
		},
	}
}

func newFollowUpCancelCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Remove a queued follow-up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ws().CancelScheduled(cmd.Context(), args[0])
		},
	}
}
