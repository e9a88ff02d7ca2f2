package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/backkem/homekit/pkg/discovery"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/securechannel/pairings"
	"github.com/backkem/homekit/pkg/securechannel/pairsetup"
	"github.com/backkem/homekit/pkg/securechannel/pairverify"
	"github.com/backkem/homekit/pkg/transport"
	"github.com/cenkalti/backoff"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

func runDiscover(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	var o options
	o.register(fs)
	wait := fs.Duration("wait", discovery.DefaultBrowseTimeout, "Browse window")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := discovery.NewBrowser(discovery.BrowserConfig{
		Timeout:       *wait,
		LoggerFactory: o.loggerFactory(),
	})
	if err != nil {
		return err
	}
	found, err := b.Browse(ctx)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		color.Yellow("No accessories found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "ID", "Address", "Category", "Model", "Paired"})
	table.SetBorder(false)
	for _, acc := range found {
		addr, err := acc.Address()
		if err != nil {
			addr = "-"
		}
		table.Append([]string{
			acc.Instance,
			acc.TXT.ID,
			addr,
			acc.TXT.Category.String(),
			acc.TXT.Model,
			strconv.FormatBool(acc.Paired()),
		})
	}
	table.Render()
	return nil
}

func runSetup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var o options
	o.register(fs)
	addr := fs.String("addr", "", "Accessory address (host:port)")
	id := fs.String("id", "", "Accessory pairing id, resolved over mDNS when -addr is empty")
	pin := fs.String("pin", "", "Setup code; prompted when empty")
	retries := fs.Int("retries", 3, "Retries while the accessory reports Busy or Backoff")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return err
	}
	cred, err := cfg.Identity(nil)
	if err != nil {
		return err
	}
	target, err := resolveAddress(ctx, &o, cfg, *addr, *id)
	if err != nil {
		return err
	}
	code := *pin
	if code == "" {
		if code, err = promptPIN(); err != nil {
			return err
		}
	}
	if len(code) > pairsetup.PINLength {
		color.Yellow("Only the first %d characters of the setup code are used", pairsetup.PINLength)
	}

	lf := o.loggerFactory()
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(*retries))
	var result *pairsetup.Result
	err = retryBusy(ctx, policy, func() error {
		opCtx, cancel := context.WithTimeout(ctx, o.Timeout)
		defer cancel()

		client, err := transport.Dial(opCtx, target, transport.ClientConfig{
			DeviceID:      cfg.DeviceID,
			Credential:    cred,
			LoggerFactory: lf,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		result, err = client.PairSetup(opCtx, code)
		return err
	})
	if err != nil {
		return err
	}

	cfg.SetPeer(result.PeerID, &Peer{
		Address:   target,
		PublicKey: hex.EncodeToString(result.PeerPublicKey),
	})
	if err := cfg.Save(o.ConfigPath); err != nil {
		return err
	}
	color.Green("Paired with %s as %s", result.PeerID, cfg.DeviceID)
	return nil
}

func runVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	var o options
	o.register(fs)
	p := registerPeerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	client, target, err := p.connect(ctx, &o)
	if err != nil {
		return err
	}
	defer client.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+target+"/accessories", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	color.Green("Verified %s (%s)", p.resolvedID, resp.Status)
	os.Stdout.Write(body)
	fmt.Println()
	return nil
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var o options
	o.register(fs)
	p := registerPeerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	client, _, err := p.connect(ctx, &o)
	if err != nil {
		return err
	}
	defer client.Close()

	list, err := pairings.List(ctx, client)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Controller", "Admin", "Public key"})
	table.SetBorder(false)
	for _, pr := range list {
		table.Append([]string{pr.ID, strconv.FormatBool(pr.Admin), hex.EncodeToString(pr.PublicKey)})
	}
	table.Render()
	return nil
}

func runRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	var o options
	o.register(fs)
	p := registerPeerFlags(fs)
	controller := fs.String("controller", "", "Controller id to remove (default: this controller)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	client, _, err := p.connect(ctx, &o)
	if err != nil {
		return err
	}
	defer client.Close()

	target := *controller
	if target == "" {
		target = p.cfg.DeviceID
	}
	if err := pairings.Remove(ctx, client, target); err != nil {
		return err
	}

	if target == p.cfg.DeviceID {
		delete(p.cfg.Accessories, strings.ToUpper(p.resolvedID))
		if err := p.cfg.Save(o.ConfigPath); err != nil {
			return err
		}
	}
	color.Green("Removed %s from %s", target, p.resolvedID)
	return nil
}

// peerFlags selects a stored accessory.
type peerFlags struct {
	id       *string
	addr     *string
	insecure *bool

	cfg        *Config
	resolvedID string
}

func registerPeerFlags(fs *flag.FlagSet) *peerFlags {
	return &peerFlags{
		id:       fs.String("id", "", "Accessory pairing id (default: the only stored accessory)"),
		addr:     fs.String("addr", "", "Override the stored accessory address"),
		insecure: fs.Bool("insecure", false, "Skip the accessory signature check"),
	}
}

// connect dials the selected accessory and runs Pair-Verify.
func (p *peerFlags) connect(ctx context.Context, o *options) (*transport.Client, string, error) {
	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	if cfg.Credential == "" {
		return nil, "", errors.New("no controller identity; run setup first")
	}
	cred, err := cfg.Identity(nil)
	if err != nil {
		return nil, "", err
	}

	id, peer, err := selectPeer(cfg, *p.id)
	if err != nil {
		return nil, "", err
	}
	key, err := peer.Key()
	if err != nil {
		return nil, "", err
	}
	target := *p.addr
	if target == "" {
		target = peer.Address
	}

	lf := o.loggerFactory()
	client, err := transport.Dial(ctx, target, transport.ClientConfig{
		DeviceID:      cfg.DeviceID,
		Credential:    cred,
		LoggerFactory: lf,
	})
	if err != nil {
		return nil, "", err
	}
	err = client.PairVerify(ctx, pairverify.Config{
		Credential:         cred,
		PeerID:             id,
		PeerPublicKey:      key,
		InsecureSkipVerify: *p.insecure,
	})
	if err != nil {
		client.Close()
		return nil, "", err
	}

	p.cfg = cfg
	p.resolvedID = id
	return client, target, nil
}

// selectPeer picks the accessory named by id, or the only stored one.
func selectPeer(cfg *Config, id string) (string, *Peer, error) {
	if id != "" {
		p, ok := cfg.Peer(id)
		if !ok {
			return "", nil, fmt.Errorf("accessory %s is not paired", id)
		}
		return strings.ToUpper(id), p, nil
	}
	ids := cfg.PeerIDs()
	switch len(ids) {
	case 0:
		return "", nil, errors.New("no paired accessories; run setup first")
	case 1:
		return ids[0], cfg.Accessories[ids[0]], nil
	default:
		return "", nil, fmt.Errorf("several accessories paired, pick one with -id: %s", strings.Join(ids, ", "))
	}
}

// resolveAddress returns addr, the stored address of id, or the address
// found for id over mDNS.
func resolveAddress(ctx context.Context, o *options, cfg *Config, addr, id string) (string, error) {
	if addr != "" {
		return addr, nil
	}
	if id == "" {
		return "", errors.New("one of -addr or -id is required")
	}
	if p, ok := cfg.Peer(id); ok && p.Address != "" {
		return p.Address, nil
	}

	b, err := discovery.NewBrowser(discovery.BrowserConfig{LoggerFactory: o.loggerFactory()})
	if err != nil {
		return "", err
	}
	acc, err := b.Lookup(ctx, id)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", id, err)
	}
	if acc.Paired() {
		color.Yellow("%s already has a controller; Pair-Setup will likely be refused", id)
	}
	return acc.Address()
}

func pinPrompt() string {
	return fmt.Sprintf("Setup code (%d characters): ", pairsetup.PINLength)
}

func promptPIN() (string, error) {
	rl, err := readline.NewEx(&readline.Config{Prompt: pinPrompt()})
	if err != nil {
		return "", err
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// retryBusy runs op until it succeeds, fails with anything other than a
// Busy or Backoff peer error, or policy gives up. A retry delay sent by
// the accessory lengthens the wait.
func retryBusy(ctx context.Context, policy backoff.BackOff, op func() error) error {
	b := &peerBackOff{BackOff: policy}
	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var se *securechannel.Error
		if errors.As(err, &se) && se.Kind == securechannel.KindPeer && se.Peer.Temporary() {
			b.delay = se.RetryDelay
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		color.Yellow("%v; retrying in %s", err, d)
	})
}

// peerBackOff stretches the next wait to the accessory's retry delay.
type peerBackOff struct {
	backoff.BackOff
	delay time.Duration
}

func (p *peerBackOff) NextBackOff() time.Duration {
	d := p.BackOff.NextBackOff()
	if d != backoff.Stop && p.delay > d {
		d = p.delay
	}
	p.delay = 0
	return d
}
