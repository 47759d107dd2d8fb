// Package wikipedia provides a client for the MediaWiki action API of
// English Wikipedia and for Wikidata entity documents.
package wikipedia

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultAPIURL      = "https://en.wikipedia.org/w/api.php"
	defaultEntityURL   = "https://www.wikidata.org/wiki/Special:EntityData"
	defaultUserAgent   = "mne-enrich/1.0 (https://github.com/sells-group/mne-enrich)"
	defaultSearchLimit = 10
)

// ErrDisambiguation is returned by Page when the title resolves to a
// disambiguation page.
var ErrDisambiguation = eris.New("wikipedia: disambiguation page")

// ErrPageMissing is returned by Page when no page has the given title.
var ErrPageMissing = eris.New("wikipedia: page missing")

// Client defines the Wikipedia and Wikidata operations used by the pipeline.
type Client interface {
	// Search returns page titles matching query, best match first.
	Search(ctx context.Context, query string) ([]string, error)
	// Page returns the page with the given exact title.
	Page(ctx context.Context, title string) (*Page, error)
	// Entity returns the Wikidata entity with the given QID.
	Entity(ctx context.Context, qid string) (*Entity, error)
}

// Page is a resolved Wikipedia article.
type Page struct {
	Title string
	URL   string
	// QID is the linked Wikidata item, empty when the page has none.
	QID string
	// Summary is the plain-text introduction.
	Summary string
}

// Option configures the client.
type Option func(*httpClient)

// WithAPIURL overrides the MediaWiki API endpoint.
func WithAPIURL(u string) Option {
	return func(c *httpClient) {
		c.apiURL = u
	}
}

// WithEntityURL overrides the Wikidata entity data endpoint.
func WithEntityURL(u string) Option {
	return func(c *httpClient) {
		c.entityURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiURL    string
	entityURL string
	http      *http.Client
}

// NewClient creates a Wikipedia client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		apiURL:    defaultAPIURL,
		entityURL: defaultEntityURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "wikipedia: create request")
	}
	// Wikimedia rejects requests without a descriptive agent.
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "wikipedia: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "wikipedia: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("wikipedia: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "wikipedia: unmarshal response")
	}
	return nil
}

func (c *httpClient) Search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", "10")
	params.Set("srprop", "")
	params.Set("format", "json")
	params.Set("formatversion", "2")

	var resp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := c.getJSON(ctx, c.apiURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	titles := make([]string, 0, min(len(resp.Query.Search), defaultSearchLimit))
	for _, s := range resp.Query.Search {
		titles = append(titles, s.Title)
	}
	return titles, nil
}

func (c *httpClient) Page(ctx context.Context, title string) (*Page, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("prop", "info|pageprops|extracts")
	params.Set("inprop", "url")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("format", "json")
	params.Set("formatversion", "2")

	var resp struct {
		Query struct {
			Pages []struct {
				Title     string `json:"title"`
				FullURL   string `json:"fullurl"`
				Missing   bool   `json:"missing"`
				Extract   string `json:"extract"`
				PageProps struct {
					WikibaseItem   string  `json:"wikibase_item"`
					Disambiguation *string `json:"disambiguation"`
				} `json:"pageprops"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.getJSON(ctx, c.apiURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	if len(resp.Query.Pages) == 0 || resp.Query.Pages[0].Missing {
		return nil, eris.Wrapf(ErrPageMissing, "wikipedia: %q", title)
	}
	p := resp.Query.Pages[0]
	if p.PageProps.Disambiguation != nil {
		return nil, eris.Wrapf(ErrDisambiguation, "wikipedia: %q", title)
	}

	return &Page{
		Title:   p.Title,
		URL:     p.FullURL,
		QID:     p.PageProps.WikibaseItem,
		Summary: strings.TrimSpace(p.Extract),
	}, nil
}

func (c *httpClient) Entity(ctx context.Context, qid string) (*Entity, error) {
	var resp struct {
		Entities map[string]Entity `json:"entities"`
	}
	if err := c.getJSON(ctx, c.entityURL+"/"+url.PathEscape(qid)+".json", &resp); err != nil {
		return nil, err
	}

	e, ok := resp.Entities[qid]
	if !ok {
		// Redirected items are keyed by their target id.
		for _, v := range resp.Entities {
			e, ok = v, true
			break
		}
	}
	if !ok {
		return nil, eris.Errorf("wikipedia: entity %s not found", qid)
	}
	return &e, nil
}
