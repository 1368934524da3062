package presence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresEndpoints(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints cannot be empty")
}

func TestEditorWireShape(t *testing.T) {
	joined := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	data, err := json.Marshal(Editor{ClientID: "c-1", Name: "alice", JoinedAt: joined})
	require.NoError(t, err)

	var ed Editor
	require.NoError(t, json.Unmarshal(data, &ed))
	assert.Equal(t, "c-1", ed.ClientID)
	assert.Equal(t, "alice", ed.Name)
	assert.True(t, ed.JoinedAt.Equal(joined))
}
