package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wetterarena/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	ts := time.Date(2024, 4, 26, 0, 10, 0, 0, time.UTC)
	tl := 11.3
	reading := domain.Reading{
		Station:     105,
		Timestamp:   ts,
		Temperature: &tl,
	}

	msg, err := serializeToMessage(reading)
	require.NoError(t, err)

	assert.Equal(t, []byte("105-1714090200"), msg.Key)
	assert.Contains(t, string(msg.Value), `"station":105`)
	assert.Contains(t, string(msg.Value), `"tl":11.3`)
	assert.NotContains(t, string(msg.Value), `"rr"`) // null measures omitted

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "station", msg.Headers[0].Key)
	assert.Equal(t, []byte("105"), msg.Headers[0].Value)
	assert.Equal(t, "timestamp", msg.Headers[1].Key)
	assert.Equal(t, []byte(ts.Format(time.RFC3339)), msg.Headers[1].Value)
}
