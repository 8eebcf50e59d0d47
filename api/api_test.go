package api_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/glaucoscan/api"
)

func TestLoad(t *testing.T) {
	doc, err := api.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "GlaucoScan API", doc.Info.Title)
	for _, path := range []string{"/sessions", "/sessions/{id}/upload", "/sessions/{id}/events", "/graph"} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
	view := doc.Components.Schemas["View"]
	require.NotNil(t, view)
	assert.Len(t, view.Value.Properties["panel"].Value.Enum, 4)
}
