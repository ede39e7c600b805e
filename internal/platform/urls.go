package platform

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// URL validation errors
var (
	ErrEmptyURL       = errors.New("URL not provided")
	ErrMalformedURL   = errors.New("malformed URL")
	ErrHostNotAllowed = errors.New("URL host is not an allowed video host")
)

// HostAllowList accepts URLs whose host equals, or is a subdomain of, one of
// its entries
type HostAllowList []string

// NewHostAllowList normalizes hosts into an allow-list
func NewHostAllowList(hosts ...string) HostAllowList {
	list := make(HostAllowList, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.TrimPrefix(h, "www.")
		if h != "" {
			list = append(list, h)
		}
	}
	return list
}

// Check parses raw and verifies it is an http(s) URL on an allowed host
func (a HostAllowList) Check(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrMalformedURL)
	}
	for _, allowed := range a {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
}

// Allows reports whether raw passes Check
func (a HostAllowList) Allows(raw string) bool {
	_, err := a.Check(raw)
	return err == nil
}
