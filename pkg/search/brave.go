package search

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/nraw/gamescanner/pkg/whttp"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Web Search API.
type Brave struct {
	apiKey   string
	endpoint string
	client   *retryablehttp.Client
}

func NewBrave(apiKey string, client *retryablehttp.Client) *Brave {
	return &Brave{apiKey: apiKey, endpoint: braveEndpoint, client: client}
}

func (b *Brave) Name() string { return "brave" }

func (b *Brave) Search(ctx context.Context, query, site string) (Result, error) {
	params := url.Values{"q": {withSite(query, site)}}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    b.endpoint + "?" + params.Encode(),
		Headers: []whttp.WHTTPHeader{
			{Name: "Accept", Value: "application/json"},
			{Name: "X-Subscription-Token", Value: b.apiKey},
		},
	}, b.client)
	if err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, &QuotaError{Provider: b.Name(), Message: "rate limit exceeded"}
	}
	if res.StatusCode != http.StatusOK {
		msg := gjson.Get(res.BodyString, "error.detail").Str
		if msg == "" {
			msg = res.Summary()
		}
		return nil, &ProviderError{Provider: b.Name(), StatusCode: res.StatusCode, Message: msg}
	}
	if !gjson.Valid(res.BodyString) {
		return nil, &ProviderError{Provider: b.Name(), StatusCode: res.StatusCode, Message: "malformed response body"}
	}

	var out Result
	gjson.Get(res.BodyString, "web.results").ForEach(func(_, value gjson.Result) bool {
		link := value.Get("url").String()
		if link != "" {
			out = append(out, Item{Title: value.Get("title").String(), Link: link})
		}
		return true
	})

	if len(out) == 0 {
		return nil, &NoMatchesError{Provider: b.Name(), Query: query}
	}
	return out, nil
}
