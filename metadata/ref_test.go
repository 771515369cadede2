package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef_YouTube(t *testing.T) {
	t.Parallel()
	cases := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"  http://www.youtube.com/v/dQw4w9WgXcQ  ",
	}
	for _, raw := range cases {
		ref, err := ParseRef(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, ProviderYouTube, ref.Provider, raw)
		assert.Equal(t, "youtube:dQw4w9WgXcQ", ref.Canonical, raw)
		assert.Equal(t, "https://img.youtube.com/vi/dQw4w9WgXcQ/0.jpg", ref.Thumbnail())
	}
}

func TestParseRef_Web(t *testing.T) {
	t.Parallel()
	ref, err := ParseRef("https://SoundCloud.com/artist/track/?b=2&a=1#comments")
	require.NoError(t, err)
	assert.Equal(t, ProviderWeb, ref.Provider)
	assert.Equal(t, "web:https://soundcloud.com/artist/track?a=1&b=2", ref.Canonical)
	assert.Empty(t, ref.Thumbnail())

	// A YouTube link without a usable id is still a valid link
	ref, err = ParseRef("https://www.youtube.com/watch?v=short")
	require.NoError(t, err)
	assert.Equal(t, ProviderWeb, ref.Provider)
}

func TestParseRef_Invalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "not a url", "ftp://example.com/song.mp3", "/relative/path", "https://"} {
		_, err := ParseRef(raw)
		assert.ErrorIs(t, err, ErrInvalidRef, raw)
	}
}

func TestParseRef_LengthLimit(t *testing.T) {
	t.Parallel()
	base := "https://example.com/"

	ref, err := ParseRef(base + strings.Repeat("a", MaxRefLength-len(base)))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ref.Canonical), maxCanonicalLength)

	_, err = ParseRef(base + strings.Repeat("a", MaxRefLength))
	assert.ErrorIs(t, err, ErrInvalidRef)

	// Short enough as submitted but the escaped canonical form is not
	_, err = ParseRef(base + "?q=" + strings.Repeat("é", 200))
	assert.ErrorIs(t, err, ErrInvalidRef)
}
