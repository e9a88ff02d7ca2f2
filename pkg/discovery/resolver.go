// Package discovery finds HomeKit accessories advertised over DNS-SD
// (_hap._tcp) and advertises local accessories the same way.
package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DefaultBrowseTimeout bounds a browse when the context has no deadline.
const DefaultBrowseTimeout = 5 * time.Second

// Accessory is a resolved _hap._tcp instance.
type Accessory struct {
	// Instance is the DNS-SD instance name, usually the accessory name.
	Instance string

	// Host is the target host name.
	Host string

	Port int

	// IPs contains the resolved addresses, sorted by preference.
	IPs []net.IP

	TXT AccessoryTXT
}

// Address returns host:port for the most preferred address.
func (a *Accessory) Address() (string, error) {
	if len(a.IPs) == 0 {
		return "", ErrNoAddresses
	}
	return net.JoinHostPort(a.IPs[0].String(), strconv.Itoa(a.Port)), nil
}

// Paired reports whether the accessory advertises an existing pairing.
func (a *Accessory) Paired() bool {
	return a.TXT.Paired()
}

// MDNSResolver is the interface for mDNS service resolution.
// Implementations close entries once browsing ends, like zeroconf does.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

// BrowserConfig holds configuration for the Browser.
type BrowserConfig struct {
	// Resolver is the mDNS implementation. If nil, zeroconf is used.
	Resolver MDNSResolver

	// Timeout bounds a browse. If zero, DefaultBrowseTimeout is used.
	Timeout time.Duration

	LoggerFactory logging.LoggerFactory
}

// Browser discovers accessories on the local network.
type Browser struct {
	config   BrowserConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewBrowser creates a Browser.
func NewBrowser(config BrowserConfig) (*Browser, error) {
	resolver := config.Resolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultBrowseTimeout
	}

	b := &Browser{
		config:   config,
		resolver: resolver,
	}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("discovery")
	}
	return b, nil
}

// Browse collects every accessory seen until the context or the browse
// timeout ends. Entries with malformed TXT records are skipped. Expiry of
// the browse window is not an error.
func (b *Browser) Browse(ctx context.Context) ([]Accessory, error) {
	var found []Accessory
	err := b.browse(ctx, func(acc Accessory) bool {
		found = append(found, acc)
		return true
	})
	return found, err
}

// Lookup browses until the accessory with the given pairing identifier
// appears. The comparison ignores case.
func (b *Browser) Lookup(ctx context.Context, id string) (*Accessory, error) {
	var match *Accessory
	err := b.browse(ctx, func(acc Accessory) bool {
		if strings.EqualFold(acc.TXT.ID, id) {
			match = &acc
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrNotFound
	}
	return match, nil
}

// browse feeds resolved accessories to fn until fn returns false, the
// resolver closes the channel, or the context ends.
func (b *Browser) browse(parent context.Context, fn func(Accessory) bool) error {
	ctx := parent
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	entries := make(chan *zeroconf.ServiceEntry)
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.resolver.Browse(ctx, ServiceHAP, DefaultDomain, entries)
	}()
	// The resolver may still be sending after an early return; keep
	// receiving until it closes the channel.
	defer func() {
		go func() {
			for range entries {
			}
		}()
	}()

	seen := make(map[string]bool)
	for {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			errCh = nil
		case entry, ok := <-entries:
			if !ok {
				return parent.Err()
			}
			if entry == nil || seen[entry.Instance] {
				continue
			}
			acc, err := entryToAccessory(entry)
			if err != nil {
				b.debugf("skipping %q: %v", entry.Instance, err)
				continue
			}
			seen[entry.Instance] = true
			if !fn(acc) {
				return nil
			}
		case <-ctx.Done():
			return parent.Err()
		}
	}
}

func (b *Browser) debugf(format string, args ...interface{}) {
	if b.log != nil {
		b.log.Debugf(format, args...)
	}
}

func entryToAccessory(entry *zeroconf.ServiceEntry) (Accessory, error) {
	txt, err := ParseAccessoryTXT(entry.Text)
	if err != nil {
		return Accessory{}, err
	}

	var ips []net.IP
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)

	return Accessory{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
		IPs:      SortIPsByPreference(ips),
		TXT:      *txt,
	}, nil
}
