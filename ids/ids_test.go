package ids_test

import (
	"testing"

	"github.com/agentcore/core/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndNotNil(t *testing.T) {
	a := ids.New()
	b := ids.New()
	assert.False(t, a.IsNil())
	assert.False(t, a.Equal(b))
}

func TestTextRoundTrip(t *testing.T) {
	a := ids.New()
	text, err := a.MarshalText()
	require.NoError(t, err)

	var b ids.ID
	require.NoError(t, b.UnmarshalText(text))
	assert.True(t, a.Equal(b))
}

func TestParseIDInvalid(t *testing.T) {
	_, err := ids.ParseID("not-a-uuid")
	assert.Error(t, err)
}

func TestSystemClockIsUTC(t *testing.T) {
	now := ids.SystemClock{}.Now()
	assert.Equal(t, now.UTC(), now)
}
