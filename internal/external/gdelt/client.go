// Package gdelt fetches company news from the GDELT DOC 2.0 API and
// extracts article text for scoring. It is the news-type DocumentSource.
package gdelt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/config"
	"github.com/verdant/esgengine/pkg/httputil"
	"github.com/verdant/esgengine/pkg/logger"
)

// seendate format used by the GDELT article list
const seendateLayout = "20060102T150405Z"

// Client queries the GDELT DOC API. All GDELT calls go through this
// client, which rate-limits itself; GDELT throttles aggressive callers.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	maxRecords int
}

// NewClient creates a new GDELT client
func NewClient(cfg config.GDELTConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.New(log).WithRateLimit(1, 2),
		logger:     log.WithField("module", "gdelt"),
		baseURL:    cfg.BaseURL,
		maxRecords: cfg.MaxRecords,
	}
}

// SourceType identifies the documents this source produces
func (c *Client) SourceType() contracts.SourceType {
	return contracts.SourceNews
}

type artlistResponse struct {
	Articles []article `json:"articles"`
}

type article struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	SeenDate string `json:"seendate"`
	Domain   string `json:"domain"`
	Language string `json:"language"`
}

// Fetch returns raw news documents for one company published since the
// given time. Articles whose text cannot be extracted are skipped with a
// log line; a partial batch is normal.
func (c *Client) Fetch(ctx context.Context, company contracts.Company, since time.Time) ([]contracts.RawDocument, error) {
	articles, err := c.search(ctx, company.Name, since)
	if err != nil {
		return nil, err
	}

	docs := make([]contracts.RawDocument, 0, len(articles))
	for _, a := range articles {
		publishedAt, err := time.Parse(seendateLayout, a.SeenDate)
		if err != nil {
			c.logger.WithField("url", a.URL).Warn("Unparseable seendate, skipped")
			continue
		}
		if publishedAt.Before(since) {
			continue
		}

		text, err := c.fetchArticleText(ctx, a.URL)
		if err != nil {
			c.logger.WithError(err).WithField("url", a.URL).Warn("Article text extraction failed, skipped")
			continue
		}

		docs = append(docs, contracts.RawDocument{
			SourceID:    a.URL,
			CompanyID:   company.ID,
			SourceType:  contracts.SourceNews,
			PublishedAt: publishedAt,
			RawText:     a.Title + "\n\n" + text,
			RawTextRef:  a.URL,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"company":  company.ID,
		"articles": len(articles),
		"usable":   len(docs),
	}).Debug("GDELT fetch finished")

	return docs, nil
}

// search runs one artlist query against the DOC API
func (c *Client) search(ctx context.Context, companyName string, since time.Time) ([]article, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("%q sourcelang:english", companyName))
	params.Set("mode", "artlist")
	params.Set("format", "json")
	params.Set("maxrecords", fmt.Sprintf("%d", c.maxRecords))
	if !since.IsZero() {
		params.Set("startdatetime", since.UTC().Format("20060102150405"))
	}

	fullURL := fmt.Sprintf("%s/api/v2/doc/doc?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("GDELT request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GDELT returned status %d", resp.StatusCode)
	}

	var body artlistResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode GDELT response: %w", err)
	}

	return body.Articles, nil
}

// fetchArticleText downloads one article and extracts its paragraph text
func (c *Client) fetchArticleText(ctx context.Context, articleURL string) (string, error) {
	resp, err := c.httpClient.Get(ctx, articleURL)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article HTML: %w", err)
	}

	text := extractText(doc)
	if text == "" {
		return "", fmt.Errorf("no article text found")
	}
	return text, nil
}

// extractText pulls readable paragraphs out of an article page. Boilerplate
// containers are dropped wholesale; anything left under 40 characters is
// navigation or caption noise.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if len(t) < 40 {
			return
		}
		parts = append(parts, t)
	})

	return strings.Join(parts, "\n")
}
