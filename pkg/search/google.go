package search

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/nraw/gamescanner/pkg/whttp"
)

const googleEndpoint = "https://customsearch.googleapis.com/customsearch/v1"

// Google queries the Google Custom Search JSON API.
type Google struct {
	apiKey   string
	cx       string
	endpoint string
	client   *retryablehttp.Client
}

func NewGoogle(apiKey, cx string, client *retryablehttp.Client) *Google {
	return &Google{apiKey: apiKey, cx: cx, endpoint: googleEndpoint, client: client}
}

func (g *Google) Name() string { return "google" }

func (g *Google) Search(ctx context.Context, query, site string) (Result, error) {
	params := url.Values{
		"key": {g.apiKey},
		"cx":  {g.cx},
		"q":   {query},
	}
	if site != "" {
		params.Set("siteSearch", site)
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  http.MethodGet,
		URL:     g.endpoint + "?" + params.Encode(),
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	}, g.client)
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Err: err}
	}

	// Google reports failures in the body, usually alongside a matching status.
	if apiErr := gjson.Get(res.BodyString, "error"); apiErr.Exists() {
		code := int(apiErr.Get("code").Int())
		msg := apiErr.Get("message").String()
		if code == http.StatusTooManyRequests || apiErr.Get("status").String() == "RESOURCE_EXHAUSTED" {
			return nil, &QuotaError{Provider: g.Name(), Message: msg}
		}
		if code == 0 {
			code = res.StatusCode
		}
		return nil, &ProviderError{Provider: g.Name(), StatusCode: code, Message: msg}
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return nil, &QuotaError{Provider: g.Name(), Message: res.Summary()}
	}
	if res.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: g.Name(), StatusCode: res.StatusCode, Message: res.Summary()}
	}
	if !gjson.Valid(res.BodyString) {
		return nil, &ProviderError{Provider: g.Name(), StatusCode: res.StatusCode, Message: "malformed response body"}
	}

	var out Result
	for _, item := range gjson.Get(res.BodyString, "items").Array() {
		link := item.Get("link").String()
		if link != "" {
			out = append(out, Item{Title: item.Get("title").String(), Link: link})
		}
	}
	if len(out) == 0 {
		return nil, &NoMatchesError{Provider: g.Name(), Query: query}
	}
	return out, nil
}
