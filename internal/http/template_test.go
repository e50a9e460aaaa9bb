package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRenderer_LoadTemplates(t *testing.T) {
	tr := RequireTemplateRenderer(t)
	require.NotNil(t, tr, "Template renderer should not be nil")
	require.NotNil(t, tr.t, "Template should be loaded")

	for _, name := range []string{tmplLayout, tmplContent, tmplErrorLayout, "form-field", "form-alert", "pagination"} {
		assert.True(t, tr.HasTemplate(name), "template %s should be loaded", name)
	}
}

func TestTemplateRenderer_EveryPageHasContentTemplate(t *testing.T) {
	tr := RequireTemplateRenderer(t)
	for page, name := range ContentTemplateMap() {
		assert.True(t, tr.HasTemplate(name), "page %s needs template %s", page, name)
	}
}

func TestNewTemplateRenderer_RequiresFS(t *testing.T) {
	_, err := NewTemplateRenderer(TemplateRendererConfig{})
	require.Error(t, err)
}
