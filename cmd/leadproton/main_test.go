package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadproton/server/internal/app"
	"github.com/leadproton/server/internal/config"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/workspace"
	"github.com/leadproton/server/pkg/logger"
)

func newTestCLI(t *testing.T) *cli {
	t.Helper()
	cfg := config.Defaults()
	cfg.StoreBackend = config.StoreMemory

	a, err := app.New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return &cli{app: a}
}

func run(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.out = &out
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLeadsCommands(t *testing.T) {
	c := newTestCLI(t)

	_, err := run(t, c, "leads", "add", "--first", "Ann", "--last", "Lee", "--email", "ann@acme.io", "--company", "Acme", "--tag", "vip")
	require.NoError(t, err)

	out, err := run(t, c, "leads", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann Lee")
	assert.Contains(t, out, "New")
	assert.Contains(t, out, "1 lead(s)")

	leads, err := c.ws().ListLeads(context.Background(), workspace.ListQuery{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	id := leads[0].ID
	assert.Equal(t, []string{"vip"}, leads[0].Tags)

	_, err = run(t, c, "leads", "note", id, "called", "twice")
	require.NoError(t, err)

	out, err = run(t, c, "leads", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "called twice")
	assert.Contains(t, out, "Lead created manually.")

	out, err = run(t, c, "leads", "status", "Replied", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 1 lead(s)")

	_, err = run(t, c, "leads", "status", "Bogus", id)
	assert.Error(t, err)

	out, err = run(t, c, "analytics")
	require.NoError(t, err)
	assert.Contains(t, out, "100.0%")

	out, err = run(t, c, "leads", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 lead(s)")
}

func TestImportExportCommands(t *testing.T) {
	c := newTestCLI(t)

	dir := t.TempDir()
	in := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(in, []byte("firstName,lastName,email\nAnn,Lee,ann@acme.io\n"), 0o644))

	out, err := run(t, c, "leads", "import", in)
	require.NoError(t, err)
	assert.Contains(t, out, "1 added")

	out, err = run(t, c, "leads", "export")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"CSV Import"`)

	leads, err := c.ws().ListLeads(context.Background(), workspace.ListQuery{})
	require.NoError(t, err)
	history, err := c.ws().LeadActivities(context.Background(), leads[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Lead imported from people.csv", history[0].Details.(model.CreatedDetails).Note)
}

func TestFollowUpCommands(t *testing.T) {
	c := newTestCLI(t)
	ctx := context.Background()

	lead, _, err := c.ws().SaveLead(ctx, model.Lead{FirstName: "Ann", LastName: "Lee", Email: "ann@acme.io", CompanyName: "Acme"})
	require.NoError(t, err)

	_, err = run(t, c, "templates", "save", "--name", "Intro", "--subject", "Hi {firstName}", "--body", "<p>About {companyName}</p>")
	require.NoError(t, err)
	templates := c.ws().ListTemplates(ctx)
	require.Len(t, templates, 1)

	out, err := run(t, c, "followup", "send", lead.ID, "--template", templates[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, `Sent "Hi Ann" to ann@acme.io`)

	out, err = run(t, c, "followup", "send", lead.ID, "-s", "Later", "-b", "<p>x</p>", "--at", "2999-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Scheduled")

	_, err = run(t, c, "followup", "send", lead.ID, "-s", "Later", "-b", "<p>x</p>", "--at", "tomorrow")
	assert.Error(t, err)

	out, err = run(t, c, "followup", "scheduled")
	require.NoError(t, err)
	assert.Contains(t, out, "Later")

	out, err = run(t, c, "followup", "deliver")
	require.NoError(t, err)
	assert.Contains(t, out, "Delivered 0 email(s)")

	got, err := c.ws().GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusContacted, got.Status)
	assert.Equal(t, 1, got.FollowUpCount)
}

func TestDiscoverCommand(t *testing.T) {
	c := newTestCLI(t)

	out, err := run(t, c, "discover", "Ann", "Lee", "acme.io", "--add", "ann.lee@acme.io")
	require.NoError(t, err)
	assert.Contains(t, out, "ann.lee@acme.io")
	assert.Contains(t, out, "Added Ann Lee")

	_, err = run(t, c, "discover", "Ann", "Lee", "acme.io", "--add", "someone@else.io")
	assert.Error(t, err)
}

func TestTable(t *testing.T) {
	tbl := newTable("A", "LONGER")
	tbl.add("value", "x")

	lines := strings.Split(strings.TrimRight(tbl.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "value  x", lines[1])
}