package netcfg

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrFeedUnavailable = errors.New("netcfg: protocol version feed unavailable")

// Feed fetches the ordered list of protocol versions published for a network.
// The feed's order is authoritative: the last entry is the latest version.
type Feed struct {
	client *http.Client
}

func NewFeed() *Feed {
	return &Feed{client: &http.Client{Timeout: 5 * time.Second}}
}

// ProtocolVersions returns every version token the network publishes, in feed
// order. Blank lines are skipped; no sorting or validation of the token order
// is performed.
func (f *Feed) ProtocolVersions(cfg NetworkConfig) ([]string, error) {
	url := cfg.NetworkURL() + "/protocol_versions"
	resp, err := f.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFeedUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFeedUnavailable, url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrFeedUnavailable, url, err)
	}

	var versions []string
	for _, line := range strings.Split(string(body), "\n") {
		if v := strings.TrimSpace(line); v != "" {
			versions = append(versions, v)
		}
	}
	return versions, nil
}
