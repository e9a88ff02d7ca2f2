// hap-accessory runs the scripted accessory on TCP and advertises it over
// mDNS, so hap-pair can be tried without real hardware.
//
// Usage:
//
//	hap-accessory [options]
//
// Options:
//
//	-listen  TCP listen address (default: :51826)
//	-name    mDNS instance name (default: "Test Accessory")
//	-id      pairing identifier (default: AA:BB:CC:DD:EE:FF)
//	-pin     setup code (default: 3141)
//	-v       debug logging
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/backkem/homekit/internal/accessory"
	"github.com/backkem/homekit/pkg/discovery"
	"github.com/backkem/homekit/pkg/transport"
	"github.com/pion/logging"
)

func main() {
	listen := flag.String("listen", ":51826", "TCP listen address")
	name := flag.String("name", "Test Accessory", "mDNS instance name")
	id := flag.String("id", "AA:BB:CC:DD:EE:FF", "Pairing identifier")
	pin := flag.String("pin", accessory.DefaultPIN, "Setup code")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	lf := logging.NewDefaultLoggerFactory()
	if *verbose {
		lf.DefaultLogLevel = logging.LogLevelDebug
	}

	if err := run(*listen, *name, *id, *pin, lf); err != nil {
		log.Fatalf("hap-accessory: %v", err)
	}
}

func run(listen, name, id, pin string, lf logging.LoggerFactory) error {
	acc, err := accessory.New(accessory.Config{
		ID:            id,
		PIN:           pin,
		LoggerFactory: lf,
	})
	if err != nil {
		return fmt.Errorf("create accessory: %w", err)
	}

	srv, err := transport.NewTCPServer(transport.TCPServerConfig{
		ListenAddr:    listen,
		Handler:       acc.Serve,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer srv.Stop()

	port := srv.Addr().(*net.TCPAddr).Port
	adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		Port:          port,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}
	defer adv.Close()

	txt := discovery.AccessoryTXT{
		ID:          id,
		Model:       "hap-accessory",
		Category:    discovery.CategoryLightbulb,
		StatusFlags: discovery.StatusNotPaired,
	}
	if err := adv.Start(name, txt); err != nil {
		return err
	}

	log.Printf("Accessory %s listening on %s", id, srv.Addr())
	log.Printf("Setup code: %s", pin)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	acc.OnPairingsChanged(func(paired bool) {
		mu.Lock()
		defer mu.Unlock()
		txt.StatusFlags = 0
		if !paired {
			txt.StatusFlags = discovery.StatusNotPaired
		}
		txt.ConfigNumber++
		if err := adv.Update(txt); err != nil {
			log.Printf("update TXT: %v", err)
		}
	})

	<-ctx.Done()
	log.Println("Shutting down...")
	return nil
}
