package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializableColours_Value(t *testing.T) {
	v, err := SerializableColours{"#020304", "#6581be"}.Value()
	assert.NoError(t, err)
	assert.Equal(t, "#020304,#6581be", v)
}

func TestSerializableColours_Scan(t *testing.T) {
	var s SerializableColours
	assert.NoError(t, s.Scan("#020304,#6581be"))
	assert.Equal(t, SerializableColours{"#020304", "#6581be"}, s)

	assert.NoError(t, s.Scan([]byte("#abc123")))
	assert.Equal(t, SerializableColours{"#abc123"}, s)

	assert.NoError(t, s.Scan(""))
	assert.Empty(t, s)

	assert.Error(t, s.Scan(42))
}

func TestPlaybackEntry_Response(t *testing.T) {
	entry := PlaybackEntry{
		ID:         "abc",
		Title:      "a good song",
		StartedAt:  1700000000000,
		FinishedAt: 1700000180000,
	}
	r := entry.Response()
	assert.Equal(t, "2023-11-14T22:13:20Z", r.OccuredAt)
	assert.Equal(t, "2023-11-14T22:16:20Z", r.FinishedAt)
	assert.Equal(t, "a good song", r.Title)
}
