package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadproton/server/internal/model"
)

func newAnalyticsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Summarize the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.ws().Analytics(cmd.Context())

			c.printf("%s\n", titleStyle.Render("Pipeline"))
			c.printf("  total leads    %d\n", a.TotalLeads)
			c.printf("  contacted      %d\n", a.Contacted)
			c.printf("  replied        %d\n", a.Replied)
			c.printf("  response rate  %s%%\n", a.ResponseRate)

			if len(a.StatusDistribution) > 0 {
				c.printf("\n")
				t := newTable("STATUS", "LEADS")
				for _, s := range a.StatusDistribution {
					t.add(statusBadge(model.LeadStatus(s.Name)), fmt.Sprint(s.Count))
				}
				c.printf("%s", t)
			}
			if len(a.SourceDistribution) > 0 {
				c.printf("\n")
				t := newTable("SOURCE", "LEADS")
				for _, s := range a.SourceDistribution {
					t.add(s.Name, fmt.Sprint(s.Count))
				}
				c.printf("%s", t)
			}
			return nil
		},
	}
}
