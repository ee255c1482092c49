package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolverFixture(t *testing.T) (*httptest.Server, *int64) {
	t.Helper()
	var hits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/mf/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		if r.URL.Query().Get("q") == "No Such Fund" {
			json.NewEncoder(w).Encode([]fundSearchResult{})
			return
		}
		json.NewEncoder(w).Encode([]fundSearchResult{
			{SchemeCode: 118550, SchemeName: "HDFC Top 100 Fund - Growth"},
			{SchemeCode: 118551, SchemeName: "HDFC Top 100 Fund - IDCW"},
		})
	})
	mux.HandleFunc("/mf/118550", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		var detail fundSchemeDetail
		detail.Meta.SchemeCode = 118550
		detail.Meta.SchemeName = "HDFC Top 100 Fund - Growth"
		detail.Meta.ISINGrowth = "INF179K01608"
		json.NewEncoder(w).Encode(detail)
	})
	mux.HandleFunc("/v1/finance/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		if r.URL.Query().Get("q") == "INE000000000" {
			json.NewEncoder(w).Encode(quoteSearchResponse{})
			return
		}
		var resp quoteSearchResponse
		resp.Quotes = []struct {
			Symbol    string `json:"symbol"`
			Exchange  string `json:"exchange"`
			Shortname string `json:"shortname"`
			QuoteType string `json:"quoteType"`
		}{
			{Symbol: "0P0000XVUO.BO", Exchange: "BSE"},
			{Symbol: "0P0000XVUO.NS", Exchange: "NSI"},
		}
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestResolver(server *httptest.Server) SecurityResolver {
	return NewSecurityResolver(ResolverConfig{
		FundSearchBaseURL:  server.URL,
		QuoteLookupBaseURL: server.URL,
		Timeout:            2 * time.Second,
		CacheTTL:           time.Minute,
		RateLimit:          1000,
		RateBurst:          1000,
		MaxAttempts:        1,
	})
}

func TestResolveNameChain(t *testing.T) {
	server, _ := newResolverFixture(t)
	resolver := newTestResolver(server)

	res, err := resolver.ResolveName(context.Background(), "hdfc top 100")
	require.NoError(t, err)
	assert.Equal(t, "INF179K01608", res.CanonicalID, "ISIN wins as canonical id")
	assert.Equal(t, "INF179K01608", res.ISIN)
	assert.Equal(t, "HDFC Top 100 Fund - Growth", res.MatchedName)
	assert.Equal(t, "0P0000XVUO.NS", res.Ticker, "NSE listing preferred over BSE")
}

func TestResolveNameCached(t *testing.T) {
	server, hits := newResolverFixture(t)
	resolver := newTestResolver(server)
	ctx := context.Background()

	_, err := resolver.ResolveName(ctx, "HDFC Top 100")
	require.NoError(t, err)
	afterFirst := atomic.LoadInt64(hits)

	// Same name under different casing must hit the cache, not the network.
	_, err = resolver.ResolveName(ctx, "hdfc top 100")
	require.NoError(t, err)
	assert.Equal(t, afterFirst, atomic.LoadInt64(hits))
}

func TestResolveNameNoMatch(t *testing.T) {
	server, _ := newResolverFixture(t)
	resolver := newTestResolver(server)

	_, err := resolver.ResolveName(context.Background(), "No Such Fund")
	require.ErrorIs(t, err, ErrResolverNoMatch)
}

func TestResolveISIN(t *testing.T) {
	server, _ := newResolverFixture(t)
	resolver := newTestResolver(server)

	res, err := resolver.ResolveISIN(context.Background(), " inf179k01608 ")
	require.NoError(t, err)
	assert.Equal(t, "INF179K01608", res.CanonicalID)
	assert.Equal(t, "0P0000XVUO.NS", res.Ticker)

	_, err = resolver.ResolveISIN(context.Background(), "INE000000000")
	require.ErrorIs(t, err, ErrResolverNoMatch)
}

func TestResolverTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(slow.Close)

	resolver := NewSecurityResolver(ResolverConfig{
		FundSearchBaseURL:  slow.URL,
		QuoteLookupBaseURL: slow.URL,
		Timeout:            50 * time.Millisecond,
		CacheTTL:           time.Minute,
		RateLimit:          1000,
		RateBurst:          1000,
		MaxAttempts:        1,
	})

	_, err := resolver.ResolveName(context.Background(), "anything")
	require.ErrorIs(t, err, ErrResolverTimeout)
}
