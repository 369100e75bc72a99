// Package mdns locates the view-model server on the local network.
//
// The server advertises itself via DNS-SD as _homectlx._tcp with TXT records:
//   - version: protocol version
//   - name: human-readable panel name
//   - path: optional base path of the web app
//
// Discovery is opt-in; a configured server URL always wins.
package mdns

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	apperrors "github.com/homectlx/panel/internal/errors"
)

// ServiceType is the mDNS service type of HOMEctlx servers.
const ServiceType = "_homectlx._tcp"

// Domain is the DNS-SD browse domain.
const Domain = "local."

// Server represents a panel server found via mDNS.
type Server struct {
	// Name is the human-readable name of the server.
	Name string

	// Host is the IP address or hostname.
	Host string

	// Port is the HTTP port.
	Port int

	// Path is the base path of the web app, "" for the root.
	Path string

	// Version is the advertised protocol version.
	Version string
}

// URL returns the base HTTP URL of the server.
func (s Server) URL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + s.Path
}

// fromEntry converts a resolved service entry.
func fromEntry(entry *zeroconf.ServiceEntry) Server {
	s := Server{
		Name: entry.Instance,
		Port: entry.Port,
	}

	// Prefer IPv4 address
	if len(entry.AddrIPv4) > 0 {
		s.Host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		s.Host = entry.AddrIPv6[0].String()
	} else {
		s.Host = strings.TrimSuffix(entry.HostName, ".")
	}

	for _, txt := range entry.Text {
		key, val, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "version":
			s.Version = val
		case "name":
			s.Name = val
		case "path":
			if val != "" && !strings.HasPrefix(val, "/") {
				val = "/" + val
			}
			s.Path = strings.TrimSuffix(val, "/")
		}
	}
	return s
}

// Discover browses for servers until ctx is done.
func Discover(ctx context.Context) ([]Server, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		servers []Server
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			s := fromEntry(entry)
			if s.Host == "" {
				continue
			}
			mu.Lock()
			servers = append(servers, s)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-ctx.Done()

	// zeroconf closes entries once ctx is done.
	wg.Wait()

	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	return servers, nil
}

// Resolve returns the URL of the first server found within timeout.
func Resolve(ctx context.Context, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	servers, err := Discover(ctx)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeConnectionEndpointUnresolved, "mdns discovery failed", err)
	}
	if len(servers) == 0 {
		return "", apperrors.New(apperrors.CodeConnectionEndpointUnresolved, "no "+ServiceType+" server found")
	}
	return servers[0].URL(), nil
}
