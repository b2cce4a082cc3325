// Package extip discovers a node's external address by asking several public
// what-is-my-ip services and taking the most common answer.
package extip

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNoConsensus = errors.New("extip: no service returned a valid address")

var defaultServices = []string{
	"https://checkip.amazonaws.com",
	"https://ifconfig.me",
	"https://ident.me",
}

// Discoverer queries external-ip services over HTTP with short timeouts.
type Discoverer struct {
	services []string
	client   *http.Client
}

func NewDiscoverer() *Discoverer {
	return &Discoverer{
		services: defaultServices,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// NewDiscovererWith targets a custom service list; used by tests.
func NewDiscovererWith(services []string, client *http.Client) *Discoverer {
	return &Discoverer{services: services, client: client}
}

// ExternalIP returns the address most services agree on. Services that fail,
// time out or return garbage are skipped; ties go to the first answer seen.
func (d *Discoverer) ExternalIP() (string, error) {
	log.Info().Msg("querying external ip")
	counts := make(map[string]int)
	var order []string
	for _, url := range d.services {
		ip := d.query(url)
		log.Info().Str("service", url).Str("ip", ip).Msg("external ip answer")
		if ip == "" || net.ParseIP(ip) == nil {
			continue
		}
		if counts[ip] == 0 {
			order = append(order, ip)
		}
		counts[ip]++
	}
	best := ""
	for _, ip := range order {
		if best == "" || counts[ip] > counts[best] {
			best = ip
		}
	}
	if best == "" {
		return "", ErrNoConsensus
	}
	return best, nil
}

func (d *Discoverer) query(url string) string {
	resp, err := d.client.Get(url)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}
