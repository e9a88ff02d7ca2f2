package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// MockMDNSResolver serves registered entries without network I/O.
type MockMDNSResolver struct {
	mu       sync.RWMutex
	services map[string][]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver creates a new mock resolver.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{
		services: make(map[string][]*zeroconf.ServiceEntry),
	}
}

// RegisterService registers an entry returned by Browse for service.
func (m *MockMDNSResolver) RegisterService(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[service] = append(m.services[service], entry)
}

// Browse implements MDNSResolver. It sends every registered entry and
// then closes entries.
func (m *MockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	m.mu.RLock()
	svcEntries := make([]*zeroconf.ServiceEntry, len(m.services[service]))
	copy(svcEntries, m.services[service])
	m.mu.RUnlock()

	defer close(entries)
	for _, entry := range svcEntries {
		select {
		case entries <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// MockAccessoryService creates a _hap._tcp entry for testing.
func MockAccessoryService(instance string, port int, ip net.IP, txt AccessoryTXT) *zeroconf.ServiceEntry {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  ServiceHAP,
			Domain:   DefaultDomain,
		},
		HostName: instance + ".local.",
		Port:     port,
		Text:     txt.Encode(),
	}
	if ip.To4() != nil {
		entry.AddrIPv4 = []net.IP{ip}
	} else {
		entry.AddrIPv6 = []net.IP{ip}
	}
	return entry
}

// MockMDNSServer records registrations made through MockServerFactory.
type MockMDNSServer struct {
	mu       sync.Mutex
	Instance string
	Service  string
	Port     int
	Text     []string
	Shutdown bool
}

// SetText implements MDNSServer.
func (s *MockMDNSServer) SetText(text []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Text = append([]string(nil), text...)
}

// Close implements MDNSServer.
func (s *MockMDNSServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Shutdown = true
}

// TXT returns the records currently published.
func (s *MockMDNSServer) TXT() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Text...)
}

// IsShutdown reports whether the registration was withdrawn.
func (s *MockMDNSServer) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Shutdown
}

// MockServerFactory hands out MockMDNSServer registrations.
type MockServerFactory struct {
	mu      sync.Mutex
	Servers []*MockMDNSServer
}

// Register implements MDNSServerFactory.
func (f *MockServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &MockMDNSServer{
		Instance: instance,
		Service:  service,
		Port:     port,
		Text:     append([]string(nil), txt...),
	}
	f.Servers = append(f.Servers, s)
	return s, nil
}

// Last returns the most recent registration, or nil.
func (f *MockServerFactory) Last() *MockMDNSServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Servers) == 0 {
		return nil
	}
	return f.Servers[len(f.Servers)-1]
}
