// Command trust runs a single-interface, user-space TCP endpoint over a
// Linux TUN device: every inbound IPv4/TCP segment is handled by package
// endpoint's RFC 793 state machine instead of the kernel's own TCP stack.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Yok224/trust/endpoint"
	"github.com/Yok224/trust/internal"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln("trust:", err)
	}
	fmt.Println("finished")
}

func run() error {
	var (
		flagIface   = flag.String("iface", "tun0", "TUN interface name")
		flagNet     = flag.String("net", "192.168.0.1/24", "address/prefix to assign to the interface")
		flagMetrics = flag.String("metrics-addr", ":9090", "address to serve /metrics on; empty disables it")
		flagVerbose = flag.Bool("v", false, "enable packet-level trace logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *flagVerbose {
		level = internal.LevelTrace
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	prefix, err := netip.ParsePrefix(*flagNet)
	if err != nil {
		return fmt.Errorf("parse -net: %w", err)
	}

	tun, err := internal.NewTun(*flagIface, prefix)
	if err != nil {
		return fmt.Errorf("open tun device: %w", err)
	}
	defer tun.Close()
	log.Info("tun device ready", slog.String("iface", tun.Name()), slog.String("addr", prefix.String()))

	dispatcher := endpoint.NewDispatcher(tun, log)

	if *flagMetrics != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(endpoint.NewCollector(dispatcher))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*flagMetrics, mux); err != nil {
				log.Error("metrics server stopped", slog.String("err", err.Error()))
			}
		}()
		log.Info("serving metrics", slog.String("addr", *flagMetrics))
	}

	return dispatcher.Run()
}
