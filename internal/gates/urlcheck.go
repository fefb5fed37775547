package gates

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// URLChecker verifies that an external link resolves
type URLChecker interface {
	Check(ctx context.Context, url string) error
}

// HTTPChecker issues a HEAD request and treats any 2xx or 3xx response as reachable
type HTTPChecker struct {
	client *resty.Client
}

var _ URLChecker = (*HTTPChecker)(nil)

// NewHTTPChecker creates a URL checker with the given timeout (5s when zero)
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &HTTPChecker{client: client}
}

func (c *HTTPChecker) Check(ctx context.Context, url string) error {
	resp, err := c.client.R().SetContext(ctx).Head(url)
	if err != nil {
		return fmt.Errorf("head request failed: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}
