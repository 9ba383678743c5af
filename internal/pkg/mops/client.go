// Package mops talks to the TWSE Market Observation Post System: XBRL
// filing downloads, AJAX table endpoints and the static monthly revenue
// pages. All endpoints are unauthenticated but aggressively rate limited
// server-side, so every client call goes through a shared limiter.
package mops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/time/rate"
)

const (
	// mopsov is the actual data server. mops.twse.com.tw redirects to it
	// with extra security checks that break plain clients.
	defaultBaseURL = "https://mopsov.twse.com.tw"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	// ErrDataNotFound means MOPS answered with its "查無資料" page.
	ErrDataNotFound = errors.New("mops: no data found for the query")

	// ErrInvalidContent means the download endpoint returned neither a
	// ZIP nor an iXBRL document, usually an error page.
	ErrInvalidContent = errors.New("mops: returned invalid content")

	// ErrNoTables means the response parsed but held no tables.
	ErrNoTables = errors.New("mops: no tables found in response")
)

// StatusError carries a non-200 response code.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mops: HTTP %d from %s", e.StatusCode, e.Endpoint)
}

type Client struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// New returns a client for the given MOPS base URL; pass "" for the
// production server. Requests are limited to one per second, the pace
// MOPS tolerates before banning an IP.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		maxRetries: defaultMaxRetries,
	}
}

// UseDefaultClient switches to http.DefaultClient so tests can install a
// mock transport.
func (c *Client) UseDefaultClient() {
	c.client = http.DefaultClient
}

// SetRateLimit overrides the default one request per second pace.
func (c *Client) SetRateLimit(requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

// BaseURL exposes the configured server, used when building static page
// URLs such as the monthly revenue reports.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DownloadXBRL fetches the filing for one company and period from the
// FileDownLoad endpoint. The year is ROC calendar; reportID "C" is the
// consolidated statement, "A" the standalone parent-company one. The
// returned bytes are either a ZIP package or an iXBRL HTML document.
func (c *Client) DownloadXBRL(ctx context.Context, stockID string, year, quarter int, reportID string) ([]byte, error) {
	if reportID == "" {
		reportID = "C"
	}
	westernYear := year + 1911

	downloadURL := fmt.Sprintf(
		"%s/server-java/FileDownLoad?functionName=t164sb01&step=9&co_id=%s&year=%d&season=%d&report_id=%s",
		c.baseURL, stockID, westernYear, quarter, reportID,
	)

	log.Printf("downloading XBRL filing %s %dQ%d", stockID, year, quarter)

	content, err := c.getWithRetry(ctx, downloadURL, c.baseURL+"/mops/web/t203sb01")
	if err != nil {
		return nil, err
	}

	if !isXBRLContent(content) {
		return nil, ErrInvalidContent
	}
	return content, nil
}

func isXBRLContent(content []byte) bool {
	if len(content) >= 2 && content[0] == 'P' && content[1] == 'K' {
		return true
	}
	return bytes.Contains(content, []byte("ix:nonFraction")) || bytes.Contains(content, []byte("ix:nonNumeric"))
}

// FetchTables posts a form to a MOPS AJAX endpoint (e.g. ajax_t05st09_2)
// and returns every table in the response as rows of cell text.
func (c *Client) FetchTables(ctx context.Context, endpoint string, form url.Values) ([]Table, error) {
	endpointURL := fmt.Sprintf("%s/mops/web/%s", c.baseURL, endpoint)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		c.setHeaders(req, endpointURL)

		body, err := c.do(req, endpointURL)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				return nil, err
			}
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}

		return tablesFromHTML(body)
	}

	return nil, fmt.Errorf("mops: fetch %s failed after %d attempts: %w", endpoint, c.maxRetries, lastErr)
}

// FetchStaticTables downloads a static MOPS page and returns its tables.
// The legacy pages (monthly revenue among them) are Big5 encoded; pass
// big5 to transcode before parsing.
func (c *Client) FetchStaticTables(ctx context.Context, pageURL string, big5 bool) ([]Table, error) {
	content, err := c.getWithRetry(ctx, pageURL, c.baseURL)
	if err != nil {
		return nil, err
	}

	if big5 {
		decoded, err := traditionalchinese.Big5.NewDecoder().Bytes(content)
		if err == nil {
			content = decoded
		}
	}

	return tablesFromHTML(content)
}

func (c *Client) getWithRetry(ctx context.Context, rawURL, referer string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, referer)

		body, err := c.do(req, rawURL)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		log.Printf("mops request failed, attempt %d/%d: %v", attempt+1, c.maxRetries, err)
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	return nil, fmt.Errorf("mops: request failed after %d attempts: %w", c.maxRetries, lastErr)
}

// do sends one request through the shared limiter, so retries pace
// themselves the same as fresh calls.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrDataNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	if bytes.Contains(body, []byte("查無資料")) || bytes.Contains(body, []byte("查無符合資料")) {
		return nil, ErrDataNotFound
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", referer)
}

// retryable separates transient transport failures from answers that
// will not change on retry.
func retryable(err error) bool {
	if errors.Is(err, ErrDataNotFound) {
		return false
	}
	var statusErr *StatusError
	return !errors.As(err, &statusErr)
}
