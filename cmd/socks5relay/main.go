package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/libsdf/socks5relay/config"
	"github.com/libsdf/socks5relay/log"
	"github.com/libsdf/socks5relay/server"
	"github.com/libsdf/socks5relay/transport"
	"github.com/libsdf/socks5relay/upstream"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := ""
	debug := false
	displayVersion := false
	flag.StringVar(&cfgPath, "c", "config.json", "path to config.json.")
	flag.BoolVar(&debug, "d", false, "logging in debug level.")
	flag.BoolVar(&displayVersion, "V", false, "display version info.")
	flag.Parse()

	if displayVersion {
		fmt.Println("socks5relay v" + version)
		return 0
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	switch {
	case debug || cfg.Logging.Level == "debug":
		log.SetLevel(log.DEBUG)
	case cfg.Logging.Level == "warn":
		log.SetLevel(log.WARNING)
	case cfg.Logging.Level == "error":
		log.SetLevel(log.ERROR)
	default:
		log.SetLevel(log.INFO)
	}
	if cfg.Logging.Format != "" {
		log.SetFormat(cfg.Logging.Format)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := make([]*server.Server, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		srv, err := buildServer(sc)
		if err != nil {
			log.Errorf("building server %s:%d: %v", sc.Address, sc.Port, err)
			return 1
		}
		servers = append(servers, srv)
	}

	var wg sync.WaitGroup
	for i, srv := range servers {
		sc := cfg.Servers[i]
		wg.Add(1)
		go func(srv *server.Server, sc config.ServerConfig) {
			defer wg.Done()
			log.Infof("serving at %s:%d", sc.Address, sc.Port)
			if err := srv.Serve(ctx); err != nil {
				log.Errorf("server %s:%d: %v", sc.Address, sc.Port, err)
			}
		}(srv, sc)
	}

	wg.Wait()
	return 0
}

// buildServer wires one configured listener (and its upstream) into a
// ready-to-run server.Server.
func buildServer(sc config.ServerConfig) (*server.Server, error) {
	listenAddr := fmt.Sprintf("%s:%d", sc.Address, sc.Port)

	listener, err := buildListenerFactory(listenAddr, sc.TLS)
	if err != nil {
		return nil, err
	}

	up, err := buildUpstream(sc.Upstream)
	if err != nil {
		return nil, err
	}

	return server.New(listener, up), nil
}

func buildListenerFactory(addr string, tlsCfg *config.TLSConfig) (transport.Factory, error) {
	if tlsCfg == nil {
		return transport.ListenTCP(addr)
	}
	tctx, err := config.BuildTLSContext(tlsCfg, config.RoleServer)
	if err != nil {
		return nil, err
	}
	return transport.ListenTLS(addr, tctx)
}

func buildUpstream(uc config.UpstreamConfig) (upstream.Factory, error) {
	switch uc.Protocol {
	case "socks":
		dialFactory, err := buildDialFactory(uc.TLS)
		if err != nil {
			return nil, err
		}
		chained := upstream.NewSocksUpstream(dialFactory, uc.Address, uint16(uc.Port))
		go chained.StartCacheWorker(context.Background())
		return chained, nil
	default:
		dialFactory, err := buildDialFactory(uc.TLS)
		if err != nil {
			return nil, err
		}
		direct := upstream.NewDirectUpstream(dialFactory)
		go direct.StartCacheWorker(context.Background())
		return direct, nil
	}
}

func buildDialFactory(tlsCfg *config.TLSConfig) (transport.Factory, error) {
	if tlsCfg == nil {
		return transport.TCPDialer{}, nil
	}
	tctx, err := config.BuildTLSContext(tlsCfg, config.RoleClient)
	if err != nil {
		return nil, err
	}
	return transport.NewTLSDialer(tctx), nil
}
