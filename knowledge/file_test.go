package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileProvider_Content(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "acme-crm", "pricing.md"),
		"# Pricing\n\nStarter tier is $49/seat/month.")
	writeFile(t, filepath.Join(root, "acme-crm", "features", "integrations.txt"),
		"Native Salesforce and HubSpot sync.")

	p := NewFileProvider(root)

	content, err := p.Content(context.Background(), "acme-crm")
	require.NoError(t, err)

	assert.Contains(t, content, "Starter tier is $49/seat/month.")
	assert.Contains(t, content, "Native Salesforce and HubSpot sync.")

	// Each document gets a heading with its relative path
	assert.Contains(t, content, "## pricing.md")
	assert.Contains(t, content, filepath.Join("features", "integrations.txt"))
}

func TestFileProvider_Content_DeterministicOrder(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "acme-crm", "b.md"), "second doc")
	writeFile(t, filepath.Join(root, "acme-crm", "a.md"), "first doc")

	p := NewFileProvider(root)

	content, err := p.Content(context.Background(), "acme-crm")
	require.NoError(t, err)

	first := strings.Index(content, "first doc")
	second := strings.Index(content, "second doc")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestFileProvider_Content_HTMLConverted(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "acme-crm", "guide.html"),
		`<html><head><title>Admin Guide</title></head><body>
		<article>
		<h1>Admin Guide</h1>
		<p>Provisioning happens through the <strong>admin console</strong>.</p>
		<p>Seats sync nightly with the billing system. SSO is available on all
		paid tiers and configured under workspace settings.</p>
		</article>
		</body></html>`)

	p := NewFileProvider(root)

	content, err := p.Content(context.Background(), "acme-crm")
	require.NoError(t, err)

	assert.Contains(t, content, "admin console")
	assert.NotContains(t, content, "<p>")
	assert.NotContains(t, content, "<html>")
}

func TestFileProvider_Content_MissingProduct(t *testing.T) {
	p := NewFileProvider(t.TempDir())

	_, err := p.Content(context.Background(), "no-such-product")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileProvider_Content_EmptyProduct(t *testing.T) {
	p := NewFileProvider(t.TempDir())

	_, err := p.Content(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileProvider_Content_EmptyDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "acme-crm"), 0o755))

	p := NewFileProvider(root)

	_, err := p.Content(context.Background(), "acme-crm")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileProvider_Content_CustomPatterns(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "acme-crm", "notes.md"), "markdown doc")
	writeFile(t, filepath.Join(root, "acme-crm", "data.csv"), "csv,data")

	p := NewFileProvider(root, WithPatterns([]string{"**/*.csv"}))

	content, err := p.Content(context.Background(), "acme-crm")
	require.NoError(t, err)

	assert.Contains(t, content, "csv,data")
	assert.NotContains(t, content, "markdown doc")
}

func TestConverter_Convert(t *testing.T) {
	c := NewConverter()

	result, err := c.Convert([]byte(`<html><head><title>Release Notes</title></head><body>
	<article>
	<h1>Release Notes</h1>
	<p>Version 3.2 adds <em>forecast rollups</em> for team leads.</p>
	<p>The reporting API now supports cursor pagination, and export jobs can be
	scheduled from the dashboard without contacting support.</p>
	</article>
	</body></html>`))
	require.NoError(t, err)

	assert.Contains(t, result.Markdown, "forecast rollups")
	assert.NotContains(t, result.Markdown, "<p>")
}

func TestConverter_Convert_PlainFragment(t *testing.T) {
	c := NewConverter()

	result, err := c.Convert([]byte("<h1>Quick Start</h1><p>Install the agent.</p>"))
	require.NoError(t, err)

	assert.Contains(t, result.Markdown, "Quick Start")
	assert.Contains(t, result.Markdown, "Install the agent.")
}
