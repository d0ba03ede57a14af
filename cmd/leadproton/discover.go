package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newDiscoverCmd(c *cli) *cobra.Command {
	var add string
	cmd := &cobra.Command{
		Use:   "discover <first> <last> <domain>",
		Short: "Guess email addresses and research the company",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := c.ws().Discover(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}

			c.printf("%s\n", titleStyle.Render("Possible emails"))
			for _, e := range res.Emails {
				c.printf("  %s\n", e)
			}
			c.printf("\n%s\n%s\n", titleStyle.Render("Company"), res.CompanyInfo)
			for _, s := range res.Sources {
				c.printf("  %s\n", mutedStyle.Render(s.Title+" "+s.URI))
			}

			if add == "" {
				return nil
			}
			if !slices.Contains(res.Emails, add) {
				return fmt.Errorf("%s is not one of the discovered addresses", add)
			}
			lead, err := c.ws().AddDiscoveredLead(ctx, res, add)
			if err != nil {
				return err
			}
			c.printf("\n%s %s %s\n", titleStyle.Render("Added"), lead.FullName(), mutedStyle.Render(lead.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&add, "add", "", "add a lead for one of the discovered addresses")
	return cmd
}
