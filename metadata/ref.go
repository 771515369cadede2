package metadata

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	ProviderYouTube = "youtube"
	ProviderWeb     = "web"
)

// ErrInvalidRef is returned for submissions that are not absolute http(s)
// links. Nothing is stored for them.
var ErrInvalidRef = errors.New("invalid media reference")

const (
	// MaxRefLength bounds the submitted link.
	MaxRefLength = 500
	// The stores index source_ref as VARCHAR(512)
	maxCanonicalLength = 512
)

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Ref is a validated submission link along with the canonical identifier used
// to detect duplicates.
type Ref struct {
	URL       string
	Canonical string
	Provider  string
	VideoID   string
}

// Thumbnail returns a thumbnail URL that can be derived without a lookup.
func (r Ref) Thumbnail() string {
	if r.Provider == ProviderYouTube {
		return fmt.Sprintf("https://img.youtube.com/vi/%s/0.jpg", r.VideoID)
	}
	return ""
}

func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("%w: empty url", ErrInvalidRef)
	}
	if len(raw) > MaxRefLength {
		return Ref{}, fmt.Errorf("%w: url longer than %d characters", ErrInvalidRef, MaxRefLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Ref{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRef, u.Scheme)
	}
	if u.Hostname() == "" {
		return Ref{}, fmt.Errorf("%w: missing host", ErrInvalidRef)
	}

	if id, ok := extractYouTubeID(u); ok {
		return Ref{
			URL:       raw,
			Canonical: ProviderYouTube + ":" + id,
			Provider:  ProviderYouTube,
			VideoID:   id,
		}, nil
	}

	canonical := ProviderWeb + ":" + canonicalURL(u)
	if len(canonical) > maxCanonicalLength {
		return Ref{}, fmt.Errorf("%w: url too long once normalised", ErrInvalidRef)
	}
	return Ref{
		URL:       raw,
		Canonical: canonical,
		Provider:  ProviderWeb,
	}, nil
}

func extractYouTubeID(u *url.URL) (string, bool) {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Split(strings.TrimPrefix(u.Path, "/"), "/")[0]
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range []string{"/embed/", "/v/", "/e/", "/shorts/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id = strings.Split(strings.TrimPrefix(u.Path, prefix), "/")[0]
				break
			}
		}
	default:
		return "", false
	}
	if !youtubeIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

func canonicalURL(u *url.URL) string {
	c := url.URL{
		Scheme:   strings.ToLower(u.Scheme),
		Host:     strings.ToLower(u.Host),
		Path:     strings.TrimSuffix(u.Path, "/"),
		RawQuery: u.Query().Encode(),
	}
	return c.String()
}
