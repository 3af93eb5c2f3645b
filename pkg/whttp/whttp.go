package whttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	DefaultTimeout = 15 * time.Second
	userAgent      = "gamescanner/1.0 (+https://github.com/nraw/gamescanner)"
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    []byte
}

type WHTTPRes struct {
	StatusCode int
	Header     http.Header
	HTTPTitle  string
	BodyString string
}

// ClientOptions configures NewClient. Zero values select sane defaults:
// DefaultTimeout and a single attempt per request.
type ClientOptions struct {
	Timeout    time.Duration
	RetryMax   int
	Proxy      string
	Jar        http.CookieJar
	CheckRetry retryablehttp.CheckRetry
	Logger     logrus.FieldLogger
}

// NewClient builds the retryablehttp client every outbound integration goes
// through. Non-2xx responses are handed back to the caller instead of being
// turned into "giving up" errors, so status codes stay inspectable.
func NewClient(opts ClientOptions) (*retryablehttp.Client, error) {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.CheckRetry != nil {
		c.CheckRetry = opts.CheckRetry
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.HTTPClient.Timeout = timeout
	c.HTTPClient.Jar = opts.Jar

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", opts.Proxy, err)
		}
		if tr, ok := c.HTTPClient.Transport.(*http.Transport); ok {
			tr.Proxy = http.ProxyURL(proxyURL)
		} else {
			c.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	if opts.Logger != nil {
		c.Logger = leveledLogger{opts.Logger}
	} else {
		c.Logger = nil
	}
	return c, nil
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	var body interface{}
	if len(wReq.Body) > 0 {
		body = wReq.Body
	}

	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en")

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		BodyString: string(bodyBytes),
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		if title, ok := getHTMLTitle(wRes.BodyString); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}

	return wRes, nil
}

// Summary returns a short, human readable description of a failed response:
// the HTML title when there is one, otherwise the first bytes of the body.
func (r *WHTTPRes) Summary() string {
	if r.HTTPTitle != "" {
		return r.HTTPTitle
	}
	s := Truncate(strings.TrimSpace(r.BodyString), 200)
	if s == "" {
		return http.StatusText(r.StatusCode)
	}
	return s
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence,
// marking the cut with "...".
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.ToValidUTF8(s[:cut], "") + "..."
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(requestBody string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(requestBody))
	if err != nil {
		return "", false
	}

	return traverse(doc)
}

// leveledLogger routes retryablehttp's key/value logging into logrus.
type leveledLogger struct {
	l logrus.FieldLogger
}

func (a leveledLogger) fields(kv []interface{}) logrus.FieldLogger {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return a.l.WithFields(f)
}

func (a leveledLogger) Error(msg string, kv ...interface{}) { a.fields(kv).Error(msg) }
func (a leveledLogger) Info(msg string, kv ...interface{})  { a.fields(kv).Debug(msg) }
func (a leveledLogger) Debug(msg string, kv ...interface{}) { a.fields(kv).Debug(msg) }
func (a leveledLogger) Warn(msg string, kv ...interface{})  { a.fields(kv).Warn(msg) }
