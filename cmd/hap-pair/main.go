// hap-pair pairs with HomeKit accessories on the local network.
//
// Usage:
//
//	hap-pair <command> [options]
//
// Commands:
//
//	discover   list _hap._tcp accessories
//	setup      run Pair-Setup with an accessory and store the pairing
//	verify     run Pair-Verify and fetch /accessories over the encrypted channel
//	list       list the controllers paired with an accessory
//	remove     remove a controller pairing from an accessory
//
// Common options:
//
//	-config    state file (default: hap-pair.yaml)
//	-timeout   per-operation timeout (default: 30s)
//	-v         debug logging
//
// Example:
//
//	hap-pair discover
//	hap-pair setup -addr 192.168.1.20:51826 -pin 3141
//	hap-pair verify -id AA:BB:CC:DD:EE:FF
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pion/logging"
)

// options holds the flags shared by every command.
type options struct {
	ConfigPath string
	Timeout    time.Duration
	Verbose    bool
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", "hap-pair.yaml", "State file")
	fs.DurationVar(&o.Timeout, "timeout", 30*time.Second, "Per-operation timeout")
	fs.BoolVar(&o.Verbose, "v", false, "Debug logging")
}

func (o *options) loggerFactory() logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	if o.Verbose {
		f.DefaultLogLevel = logging.LogLevelDebug
	}
	return f
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"discover", "list _hap._tcp accessories", runDiscover},
	{"setup", "pair with an accessory", runSetup},
	{"verify", "verify a pairing and fetch /accessories", runVerify},
	{"list", "list controllers paired with an accessory", runList},
	{"remove", "remove a controller pairing", runRemove},
}

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := dispatch(ctx, os.Args[1], os.Args[2:])
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, name string, args []string) error {
	for _, c := range commands {
		if c.name == name {
			return c.run(ctx, args)
		}
	}
	printUsage()
	return errUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
}
