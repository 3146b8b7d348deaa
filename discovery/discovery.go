// Package discovery advertises a bridge host on the local network with mDNS
// and lets headless documents find it.
package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_nativebridge._tcp"

// DiscoveredService represents a discovered bridge host
type DiscoveredService struct {
	ServiceName string
	Address     string
	Port        int
	Path        string
	TXTRecords  []string
}

// URL is the websocket address of the discovered bridge endpoint.
func (s DiscoveredService) URL() string {
	path := s.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(s.Address, fmt.Sprint(s.Port)), path)
}

func txtRecords(path, eventName string) []string {
	return []string{"path=" + path, "event=" + eventName}
}

func txtValue(records []string, key string) string {
	for _, r := range records {
		if k, v, ok := strings.Cut(r, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// Advertiser publishes the bridge endpoint until Shutdown is called.
type Advertiser struct {
	server *mdns.Server
}

func Advertise(port int, path, eventName string) (*Advertiser, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("advertise bridge: %w", err)
	}

	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, txtRecords(path, eventName))
	if err != nil {
		return nil, fmt.Errorf("advertise bridge: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("advertise bridge: %w", err)
	}

	slog.Info("Advertising bridge over mDNS", "service", ServiceType, "port", port, "path", path)
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() error {
	slog.Info("Stopped mDNS advertisement")
	return a.server.Shutdown()
}

// Discover returns the first bridge host that answers within timeout.
func Discover(timeout time.Duration) (*DiscoveredService, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)

	// Start discovery in background
	go func() {
		defer close(entriesCh)
		params := mdns.DefaultParams(ServiceType)
		params.Entries = entriesCh
		params.Timeout = timeout
		if err := mdns.Query(params); err != nil {
			slog.Warn("mDNS query failed", "error", err)
		}
	}()

	// Wait for first result or timeout
	select {
	case entry := <-entriesCh:
		if entry == nil {
			return nil, fmt.Errorf("no %s service found", ServiceType)
		}
		return fromEntry(entry)

	case <-time.After(timeout):
		return nil, fmt.Errorf("mDNS discovery timeout for %s", ServiceType)
	}
}

func fromEntry(entry *mdns.ServiceEntry) (*DiscoveredService, error) {
	var address string
	if entry.AddrV4 != nil {
		address = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		address = entry.AddrV6.String()
	} else {
		return nil, fmt.Errorf("no valid address found for service")
	}

	service := &DiscoveredService{
		ServiceName: entry.Name,
		Address:     address,
		Port:        entry.Port,
		Path:        txtValue(entry.InfoFields, "path"),
		TXTRecords:  entry.InfoFields,
	}

	slog.Info("Discovered bridge host",
		"service_name", service.ServiceName,
		"address", service.Address,
		"port", service.Port,
		"path", service.Path,
	)
	return service, nil
}
