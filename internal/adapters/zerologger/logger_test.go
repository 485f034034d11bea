package zerologger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info")
	ctx := context.Background()

	l.Debug(ctx, "should be filtered")
	l.Info(ctx, "hello", map[string]interface{}{"pair": "BTCUSDC", "price": 100.5})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "BTCUSDC", entry["pair"])
	assert.Equal(t, 100.5, entry["price"])
	assert.NotEmpty(t, entry["time"])
}

func TestErrorCarriesErr(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "error")

	l.Error(context.Background(), errors.New("boom"), "failed", map[string]interface{}{"op": "buy"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "failed", entry["message"])
	assert.Equal(t, "buy", entry["op"])
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "nonsense")

	l.Debug(context.Background(), "filtered")
	l.Info(context.Background(), "kept")

	assert.Contains(t, buf.String(), "kept")
	assert.NotContains(t, buf.String(), "filtered")
}
