package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leadproton/server/internal/model"
)

func newTemplatesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"tpl"},
		Short:   "Manage email templates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := newTable("ID", "NAME", "SUBJECT")
			for _, tmpl := range c.ws().ListTemplates(cmd.Context()) {
				t.add(tmpl.ID, tmpl.Name, tmpl.Subject)
			}
			c.printf("%s", t)
			return nil
		},
	}

	var tmpl model.Template
	save := &cobra.Command{
		Use:   "save",
		Short: "Create a template, or replace one with --id",
		Long:  "Subject and body may use {firstName}, {lastName}, {companyName} and {role}.",
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := c.ws().SaveTemplate(cmd.Context(), tmpl)
			if err != nil {
				return err
			}
			c.printf("%s %s %s\n", titleStyle.Render("Saved"), saved.Name, mutedStyle.Render(saved.ID))
			return nil
		},
	}
	save.Flags().StringVar(&tmpl.ID, "id", "", "template to replace")
	save.Flags().StringVar(&tmpl.Name, "name", "", "template name")
	save.Flags().StringVar(&tmpl.Subject, "subject", "", "subject line")
	save.Flags().StringVar(&tmpl.Body, "body", "", "HTML body")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ws().DeleteTemplate(cmd.Context(), args[0])
		},
	}

	suggest := &cobra.Command{
		Use:   "subjects <body>",
		Short: "Suggest subject lines for an email body",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := c.ws().SuggestSubjectLines(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			for _, l := range lines {
				c.printf("- %s\n", l)
			}
			return nil
		},
	}

	generate := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate an email body from a short prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := c.ws().GenerateBody(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			c.printf("%s\n", body)
			return nil
		},
	}

	cmd.AddCommand(list, save, del, suggest, generate)
	return cmd
}
