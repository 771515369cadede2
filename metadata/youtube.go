package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/utils"
)

const youtubeVideosEndpoint = "/youtube/v3/videos"

type YouTubeResponse struct {
	Items []YouTubeVideo `json:"items"`
}

type YouTubeVideo struct {
	ID      string         `json:"id"`
	Snippet YouTubeSnippet `json:"snippet"`
}

type YouTubeSnippet struct {
	Title        string                      `json:"title"`
	ChannelTitle string                      `json:"channelTitle"`
	Thumbnails   map[string]YouTubeThumbnail `json:"thumbnails"`
}

type YouTubeThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeClient resolves titles through the YouTube Data API.
type YouTubeClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

func NewYouTubeClient(token string) *YouTubeClient {
	return &YouTubeClient{
		BaseURL:    "https://www.googleapis.com",
		HTTPClient: utils.NewHTTPClient(),
		Token:      token,
	}
}

func (c *YouTubeClient) Resolve(ctx context.Context, ref Ref) (models.Metadata, error) {
	if ref.Provider != ProviderYouTube || c.Token == "" {
		return models.Metadata{}, ErrUnsupported
	}

	video, err := c.getVideo(ctx, ref.VideoID)
	if err != nil {
		return models.Metadata{}, err
	}

	meta := models.Metadata{
		Title:     video.Snippet.Title,
		Thumbnail: ref.Thumbnail(),
	}
	for _, size := range []string{"high", "medium", "default"} {
		if thumb, ok := video.Snippet.Thumbnails[size]; ok && thumb.URL != "" {
			meta.Thumbnail = thumb.URL
			break
		}
	}
	return meta, nil
}

func (c *YouTubeClient) getVideo(ctx context.Context, videoID string) (YouTubeVideo, error) {
	q := url.Values{}
	q.Set("id", videoID)
	q.Set("key", c.Token)
	q.Set("part", "snippet")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+youtubeVideosEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return YouTubeVideo{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return YouTubeVideo{}, fmt.Errorf("failed to contact youtube: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return YouTubeVideo{}, &StatusError{StatusCode: res.StatusCode, Provider: ProviderYouTube}
	}

	var ytResponse YouTubeResponse
	if err := json.NewDecoder(res.Body).Decode(&ytResponse); err != nil {
		return YouTubeVideo{}, fmt.Errorf("failed to parse youtube response: %w", err)
	}
	if len(ytResponse.Items) == 0 || ytResponse.Items[0].Snippet.Title == "" {
		return YouTubeVideo{}, ErrNoTitle
	}
	return ytResponse.Items[0], nil
}
