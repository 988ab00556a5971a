package llm

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTransport_RoutesThroughProxy(t *testing.T) {
	var gotHost, gotURI string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotURI = r.RequestURI
		_, _ = io.WriteString(w, "via proxy")
	}))
	defer proxy.Close()

	client, err := NewTransport(proxy.URL)
	require.NoError(t, err)

	resp, err := client.Get("http://upstream.example/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "via proxy", string(body))
	require.Equal(t, "upstream.example", gotHost)
	require.Equal(t, "http://upstream.example/ping", gotURI)
}

func TestNewTransport_InvalidProxy(t *testing.T) {
	for _, proxy := range []string{"http://bad host:80", "no-scheme", "://"} {
		_, err := NewTransport(proxy)
		require.Error(t, err, proxy)
	}
}

func TestHeaderDoer(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	d := headerDoer{next: srv.Client(), headers: map[string]string{"Firstkey": "FirstVal", "SecondKey": "SecondVal"}}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Firstkey", "overridden")

	resp, err := d.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "FirstVal", got.Get("Firstkey"))
	require.Equal(t, "SecondVal", got.Get("SecondKey"))
}
