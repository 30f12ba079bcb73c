package web

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	tmpl := Templates()
	assert.NotNil(t, tmpl.Lookup("index.html"))
	assert.NotNil(t, tmpl.Lookup("results"))
}

func TestFuncs(t *testing.T) {
	var buf bytes.Buffer
	tmpl := Templates()
	_, err := tmpl.New("probe").Parse(`{{money "USD" 12.5}}|{{clock "2025-06-01T08:05:00"}}|{{sortLabel "-price"}}|{{add 1 2}}`)
	require.NoError(t, err)
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "probe", nil))
	assert.Equal(t, "USD 12.50|2025-06-01 08:05|Price (high to low)|3", buf.String())
}
