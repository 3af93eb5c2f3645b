package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/nraw/gamescanner/pkg/whttp"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the key-less HTML endpoint. It is the fallback when no
// API key is configured.
type DuckDuckGo struct {
	endpoint string
	client   *retryablehttp.Client
}

func NewDuckDuckGo(client *retryablehttp.Client) *DuckDuckGo {
	return &DuckDuckGo{endpoint: duckDuckGoEndpoint, client: client}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query, site string) (Result, error) {
	form := url.Values{"q": {withSite(query, site)}}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  http.MethodPost,
		URL:     d.endpoint,
		Headers: []whttp.WHTTPHeader{{Name: "Content-Type", Value: "application/x-www-form-urlencoded"}},
		Body:    []byte(form.Encode()),
	}, d.client)
	if err != nil {
		return nil, &ProviderError{Provider: d.Name(), Err: err}
	}

	// The bot challenge page is served instead of results when throttled.
	if res.StatusCode == http.StatusTooManyRequests || strings.Contains(res.BodyString, "anomaly-modal") {
		return nil, &QuotaError{Provider: d.Name(), Message: "rate limited"}
	}
	if res.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: d.Name(), StatusCode: res.StatusCode, Message: res.Summary()}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.BodyString))
	if err != nil {
		return nil, &ProviderError{Provider: d.Name(), StatusCode: res.StatusCode, Message: "malformed response body", Err: err}
	}

	var out Result
	doc.Find(".result").Not(".result--ad").Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		link := unwrapDuckDuckGoLink(href)
		if link == "" {
			return
		}
		out = append(out, Item{Title: strings.TrimSpace(a.Text()), Link: link})
	})

	if len(out) == 0 {
		return nil, &NoMatchesError{Provider: d.Name(), Query: query}
	}
	return out, nil
}

// unwrapDuckDuckGoLink resolves "//duckduckgo.com/l/?uddg=<target>" redirect
// links to their target. Direct links are returned unchanged.
func unwrapDuckDuckGoLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		return u.Query().Get("uddg")
	}
	return u.String()
}
