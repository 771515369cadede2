package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/utils"
)

const maxPageBytes = 1 << 20

// PageClient reads the OpenGraph tags or the <title> of the linked page. It
// serves links without a dedicated API and YouTube links when no API key is
// configured.
type PageClient struct {
	HTTPClient *http.Client
}

func NewPageClient() *PageClient {
	return &PageClient{HTTPClient: utils.NewHTTPClient()}
}

func (c *PageClient) Resolve(ctx context.Context, ref Ref) (models.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return models.Metadata{}, err
	}
	req.Header.Set("Accept", "text/html")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return models.Metadata{}, &StatusError{StatusCode: res.StatusCode, Provider: ProviderWeb}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return models.Metadata{}, fmt.Errorf("failed to parse page: %w", err)
	}

	title := firstNonEmpty(
		doc.Find("meta[property='og:title']").AttrOr("content", ""),
		doc.Find("meta[name='twitter:title']").AttrOr("content", ""),
		doc.Find("title").First().Text(),
	)
	if title == "" {
		return models.Metadata{}, ErrNoTitle
	}

	thumbnail := ref.Thumbnail()
	if thumbnail == "" {
		thumbnail = doc.Find("meta[property='og:image']").AttrOr("content", "")
	}

	return models.Metadata{Title: title, Thumbnail: thumbnail}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
