// backend/src/services/security_resolver.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/wealthfolio/backend/src/logger"
	"github.com/username/wealthfolio/backend/src/schema"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Structs for the fund-search API responses.
type fundSearchResult struct {
	SchemeCode int    `json:"schemeCode"`
	SchemeName string `json:"schemeName"`
}

type fundSchemeDetail struct {
	Meta struct {
		SchemeCode      int    `json:"scheme_code"`
		SchemeName      string `json:"scheme_name"`
		ISINGrowth      string `json:"isin_growth"`
		ISINDivReinvest string `json:"isin_div_reinvestment"`
	} `json:"meta"`
}

// Structs for the quote-lookup API responses.
type quoteSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Exchange  string `json:"exchange"`
		Shortname string `json:"shortname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// securityResolverImpl resolves free-text fund names and ISINs against
// external security masters, with a long-lived cache in front so repeated
// imports of the same portfolio do not re-hit the network.
type securityResolverImpl struct {
	httpClient     *http.Client
	fundSearchURL  string
	quoteLookupURL string
	timeout        time.Duration
	maxAttempts    int
	limiter        *rate.Limiter
	cache          *cache.Cache
}

// ResolverConfig carries the tunables for NewSecurityResolver.
type ResolverConfig struct {
	FundSearchBaseURL  string
	QuoteLookupBaseURL string
	Timeout            time.Duration
	CacheTTL           time.Duration
	RateLimit          float64
	RateBurst          int
	MaxAttempts        int
}

// NewSecurityResolver creates the external-lookup resolver. The HTTP client
// carries a cookie jar because the quote provider sets session cookies on
// first contact.
func NewSecurityResolver(cfg ResolverConfig) SecurityResolver {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	return &securityResolverImpl{
		httpClient:     &http.Client{Jar: jar, Timeout: cfg.Timeout},
		fundSearchURL:  strings.TrimRight(cfg.FundSearchBaseURL, "/"),
		quoteLookupURL: strings.TrimRight(cfg.QuoteLookupBaseURL, "/"),
		timeout:        cfg.Timeout,
		maxAttempts:    cfg.MaxAttempts,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		cache:          cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// ResolveName resolves a free-text scheme/security name. The chain is fund
// search by name, then scheme detail for the ISIN, then a quote lookup that
// can add an exchange ticker. The ISIN wins as canonical id when present.
func (s *securityResolverImpl) ResolveName(ctx context.Context, name string) (Resolution, error) {
	key := "name::" + schema.NormalizeKey(name)
	if cached, found := s.cache.Get(key); found {
		return cached.(Resolution), nil
	}

	match, err := s.searchFund(ctx, name)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{MatchedName: match.SchemeName}
	detail, err := s.schemeDetail(ctx, match.SchemeCode)
	if err != nil {
		logger.L.Warn("scheme detail lookup failed, resolving by name only", "name", name, "error", err)
	} else {
		res.ISIN = firstNonEmpty(detail.Meta.ISINGrowth, detail.Meta.ISINDivReinvest)
	}

	if res.ISIN != "" {
		res.CanonicalID = res.ISIN
		if ticker, err := s.lookupTicker(ctx, res.ISIN); err == nil {
			res.Ticker = ticker
		}
	} else {
		res.CanonicalID = schema.NormalizeKey(match.SchemeName)
	}

	s.cache.Set(key, res, cache.DefaultExpiration)
	return res, nil
}

// ResolveISIN resolves an ISIN to its exchange ticker and canonical form.
func (s *securityResolverImpl) ResolveISIN(ctx context.Context, isin string) (Resolution, error) {
	key := "isin::" + schema.NormalizeKey(isin)
	if cached, found := s.cache.Get(key); found {
		return cached.(Resolution), nil
	}

	res := Resolution{CanonicalID: strings.ToUpper(strings.TrimSpace(isin)), ISIN: strings.ToUpper(strings.TrimSpace(isin))}
	ticker, err := s.lookupTicker(ctx, res.ISIN)
	if err != nil {
		return Resolution{}, err
	}
	res.Ticker = ticker

	s.cache.Set(key, res, cache.DefaultExpiration)
	return res, nil
}

func (s *securityResolverImpl) searchFund(ctx context.Context, name string) (fundSearchResult, error) {
	searchURL := fmt.Sprintf("%s/mf/search?q=%s", s.fundSearchURL, url.QueryEscape(name))
	var results []fundSearchResult
	if err := s.getJSON(ctx, searchURL, &results); err != nil {
		return fundSearchResult{}, err
	}
	if len(results) == 0 {
		return fundSearchResult{}, fmt.Errorf("%w: no scheme named %q", ErrResolverNoMatch, name)
	}
	// The search API orders by relevance; take the top hit.
	return results[0], nil
}

func (s *securityResolverImpl) schemeDetail(ctx context.Context, schemeCode int) (fundSchemeDetail, error) {
	detailURL := fmt.Sprintf("%s/mf/%d", s.fundSearchURL, schemeCode)
	var detail fundSchemeDetail
	if err := s.getJSON(ctx, detailURL, &detail); err != nil {
		return fundSchemeDetail{}, err
	}
	return detail, nil
}

// lookupTicker asks the quote provider for the exchange listing of an ISIN.
// Indian listings are preferred: NSE first, then BSE.
func (s *securityResolverImpl) lookupTicker(ctx context.Context, isin string) (string, error) {
	lookupURL := fmt.Sprintf("%s/v1/finance/search?q=%s", s.quoteLookupURL, url.QueryEscape(isin))
	var resp quoteSearchResponse
	if err := s.getJSON(ctx, lookupURL, &resp); err != nil {
		return "", err
	}
	if len(resp.Quotes) == 0 {
		return "", fmt.Errorf("%w: no listing for ISIN %s", ErrResolverNoMatch, isin)
	}
	best := resp.Quotes[0].Symbol
	for _, q := range resp.Quotes {
		if strings.HasSuffix(q.Symbol, ".NS") {
			return q.Symbol, nil
		}
		if strings.HasSuffix(q.Symbol, ".BO") {
			best = q.Symbol
		}
	}
	return best, nil
}

func (s *securityResolverImpl) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrResolverTimeout, err)
		}
		reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.doGetJSON(reqCtx, rawURL, out)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrResolverNoMatch) {
			return err
		}
		logger.L.Warn("resolver request failed", "url", rawURL, "attempt", attempt+1, "error", err)
	}
	if errors.Is(lastErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrResolverTimeout, lastErr)
	}
	if urlErr, ok := lastErr.(*url.Error); ok && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrResolverTimeout, lastErr)
	}
	return lastErr
}

func (s *securityResolverImpl) doGetJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s returned 404", ErrResolverNoMatch, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
