package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// MDNSServer is a live mDNS registration.
type MDNSServer interface {
	// SetText replaces the published TXT records.
	SetText(txt []string)
	// Close withdraws the registration.
	Close()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

type zeroconfServerFactory struct{}

func (zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	s, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, err
	}
	return zeroconfServer{s}, nil
}

type zeroconfServer struct {
	*zeroconf.Server
}

func (z zeroconfServer) Close() { z.Server.Shutdown() }

// AdvertiserConfig holds configuration for the Advertiser.
type AdvertiserConfig struct {
	// Port is the TCP port the accessory listens on.
	Port int

	// Interfaces limits advertising to these interfaces. Nil means all.
	Interfaces []net.Interface

	// ServerFactory creates registrations. If nil, zeroconf is used.
	ServerFactory MDNSServerFactory

	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes one accessory as a _hap._tcp instance.
type Advertiser struct {
	config   AdvertiserConfig
	factory  MDNSServerFactory
	log      logging.LeveledLogger
	mu       sync.Mutex
	server   MDNSServer
	instance string
	closed   bool
}

// NewAdvertiser creates an Advertiser.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.Port <= 0 || config.Port > 65535 {
		return nil, ErrInvalidPort
	}
	factory := config.ServerFactory
	if factory == nil {
		factory = zeroconfServerFactory{}
	}
	a := &Advertiser{
		config:  config,
		factory: factory,
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("advertiser")
	}
	return a, nil
}

// Start registers the instance with the given records.
func (a *Advertiser) Start(instance string, txt AccessoryTXT) error {
	if err := txt.Validate(); err != nil {
		return fmt.Errorf("advertiser: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		return ErrAlreadyStarted
	}

	records := txt.Encode()
	if a.log != nil {
		a.log.Debugf("Registering %s instance=%q port=%d txt=%v", ServiceHAP, instance, a.config.Port, records)
	}
	server, err := a.factory.Register(instance, ServiceHAP, DefaultDomain, a.config.Port, records, a.config.Interfaces)
	if err != nil {
		return fmt.Errorf("advertiser: mDNS registration failed: %w", err)
	}
	a.server = server
	a.instance = instance
	return nil
}

// Update republishes the records, for instance after pairing changes
// the status flags.
func (a *Advertiser) Update(txt AccessoryTXT) error {
	if err := txt.Validate(); err != nil {
		return fmt.Errorf("advertiser: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server == nil {
		return ErrNotFound
	}
	a.server.SetText(txt.Encode())
	return nil
}

// Instance returns the advertised instance name, or "" when stopped.
func (a *Advertiser) Instance() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instance
}

// Close withdraws the registration. A second call returns ErrClosed.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		a.server.Close()
		a.server = nil
	}
	a.instance = ""
	a.closed = true
	return nil
}
