package llm

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/sashabaranov/go-openai"
)

// NewTransport returns an HTTP client that routes every request through the
// proxy at proxies.
func NewTransport(proxies string) (*http.Client, error) {
	proxyURL, err := url.Parse(proxies)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if proxyURL.Scheme == "" || proxyURL.Host == "" {
		return nil, fmt.Errorf("parse proxy url: %q has no scheme or host", proxies)
	}

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("unexpected default transport %T", http.DefaultTransport)
	}
	tr := base.Clone()
	tr.Proxy = http.ProxyURL(proxyURL)

	return &http.Client{Transport: tr}, nil
}

func defaultTransport(proxies string) (openai.HTTPDoer, error) {
	return NewTransport(proxies)
}

// headerDoer sets a fixed header set on every outgoing request.
type headerDoer struct {
	next    openai.HTTPDoer
	headers map[string]string
}

func (d headerDoer) Do(req *http.Request) (*http.Response, error) {
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}
	return d.next.Do(req)
}
