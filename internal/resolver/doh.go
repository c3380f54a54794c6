// Package resolver looks up CNAME records through a DNS-over-HTTPS JSON API.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	customerrors "github.com/301redirect/redirector/internal/errors"
)

// maxResponseSize bounds the DoH body we are willing to decode.
const maxResponseSize = 64 << 10

// Answer is one record of the Answer section of a DoH JSON response.
type Answer struct {
	Name string `json:"name"`
	Type uint16 `json:"type"`
	TTL  uint32 `json:"TTL"`
	Data string `json:"data"`
}

// CNAMEResolver resolves the CNAME answers of a domain name.
// Implementations must be safe for concurrent use.
type CNAMEResolver interface {
	ResolveCNAME(ctx context.Context, name string) ([]Answer, error)
}

type dohResponse struct {
	Status int      `json:"Status"`
	Answer []Answer `json:"Answer"`
}

// DoHClient queries a JSON DNS-over-HTTPS endpoint such as https://dns.google/resolve.
type DoHClient struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	log        *zap.Logger
}

// NewDoHClient creates a client for endpoint. A zero timeout means the lookup
// is only bounded by the caller's context.
func NewDoHClient(endpoint string, timeout time.Duration, logger *zap.Logger) *DoHClient {
	return &DoHClient{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: &http.Client{},
		log:        logger.Named("doh"),
	}
}

// ResolveCNAME issues exactly one GET <endpoint>?type=CNAME&name=<name>.
// A response without an Answer section yields no answers and no error.
func (c *DoHClient) ResolveCNAME(ctx context.Context, name string) ([]Answer, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &customerrors.ErrResolveFailed{Domain: name, Reason: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	q := u.Query()
	q.Set("type", dns.TypeToString[dns.TypeCNAME])
	q.Set("name", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &customerrors.ErrResolveFailed{Domain: name, Reason: err.Error()}
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &customerrors.ErrResolveFailed{Domain: name, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, &customerrors.ErrResolveFailed{Domain: name, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var body dohResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return nil, &customerrors.ErrResolveFailed{Domain: name, Reason: fmt.Sprintf("malformed response: %v", err)}
	}

	c.log.Debug("CNAME lookup",
		zap.String("name", name),
		zap.String("rcode", rcodeName(body.Status)),
		zap.Int("answers", len(body.Answer)))

	return body.Answer, nil
}

func rcodeName(rcode int) string {
	if s, ok := dns.RcodeToString[rcode]; ok {
		return s
	}
	return fmt.Sprintf("RCODE%d", rcode)
}
