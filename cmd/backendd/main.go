// Copyright 2024 Nokia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command backendd is the configuration management daemon (spec §4,
// §6): it boots the tree store and transaction engine, runs the
// startup orchestrator, and serves the local-socket RPC dispatcher and
// the RESTCONF HTTP gateway until signalled to stop.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/sdcio/clixon-engine/internal/config"
	"github.com/sdcio/clixon-engine/internal/metrics"
	"github.com/sdcio/clixon-engine/internal/persist"
	"github.com/sdcio/clixon-engine/internal/plugin"
	"github.com/sdcio/clixon-engine/internal/restconf"
	"github.com/sdcio/clixon-engine/internal/rpcsock"
	"github.com/sdcio/clixon-engine/internal/session"
	"github.com/sdcio/clixon-engine/internal/startup"
	"github.com/sdcio/clixon-engine/internal/txn"
	"github.com/sdcio/clixon-engine/internal/validate"
	"github.com/sdcio/clixon-engine/internal/xmltree"
)

var stop bool

func main() {
	fs := pflag.NewFlagSet("backendd", pflag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	log.SetFormatter(&log.JSONFormatter{})

	var srv *runningServer
START:
	if srv != nil {
		srv.stop()
	}

	cfg, err := config.New(flags.ConfigFile)
	if err != nil {
		log.WithError(err).Fatal("failed to read config")
	}
	flags.Apply(cfg)
	applyLogTarget(cfg)

	log.WithField("config", cfg).Info("backendd bootstrap")

	ctx, cancel := context.WithCancel(context.Background())
	setupCloseHandler(cancel)

	srv, err = newRunningServer(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to start server")
		time.Sleep(time.Second)
		if stop {
			return
		}
		goto START
	}

	if err := srv.serve(ctx); err != nil {
		log.WithError(err).Error("server exited")
		if stop {
			return
		}
		time.Sleep(time.Second)
		goto START
	}
}

// runningServer holds every long-lived listener started for one
// generation of the daemon, so a config reload (the START: retry loop)
// can stop them all before rebuilding.
type runningServer struct {
	rpcListener  net.Listener
	privListener net.Listener
	restconf     *restconf.Gateway
	httpServer   interface{ Close() error }
}

func newRunningServer(ctx context.Context, cfg *config.Config) (*runningServer, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, err
	}

	store := xmltree.NewStore()
	store.Create("running")
	store.Create("candidate")

	persistStore := persist.New(cfg.DataDir)
	registry := plugin.NewRegistry()
	schema := &validate.Schema{Leaves: map[string]*validate.LeafConstraint{}}
	persistStore.Hints = schema.Hints()
	engine := txn.New(store, registry, schema, persistStore)
	sessions := session.NewRegistry()
	m := metrics.New()

	orchestrator := &startup.Orchestrator{
		Store:        store,
		Persist:      persistStore,
		Engine:       engine,
		Registry:     registry,
		ExtraXMLFile: cfg.ExtraXMLFile,
	}
	status, err := orchestrator.Run(ctx, startup.Mode(cfg.StartupMode))
	if err != nil {
		return nil, err
	}
	log.WithField("status", status).Info("startup complete")

	network, address := socketNetworkAddress(cfg)
	if network == "unix" {
		os.Remove(address)
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}

	dispatcher := &rpcsock.Dispatcher{
		Store:    store,
		Engine:   engine,
		Sessions: sessions,
		Persist:  persistStore,
		Autolock: rpcsock.Autolock(cfg.Autolock),
		Registry: registry,
	}
	handler := dispatcher.Handler(rpcsock.LoggingInterceptor)
	go func() {
		if err := rpcsock.Serve(ctx, ln, sessions, rpcsock.FrameLengthPrefixed, false, handler); err != nil {
			log.WithError(err).Error("rpcsock listener stopped")
		}
	}()

	privLn, err := privilegedListener(cfg)
	if err != nil {
		return nil, err
	}
	if privLn != nil {
		go func() {
			if err := rpcsock.Serve(ctx, privLn, sessions, rpcsock.FrameLengthPrefixed, true, handler); err != nil {
				log.WithError(err).Error("privileged rpcsock listener stopped")
			}
		}()
	}

	gateway := &restconf.Gateway{
		Store:    store,
		Engine:   engine,
		Sessions: sessions,
		Metrics:  m,
		Registry: registry,
	}
	httpSrv := restconf.Server(cfg.RestconfAddress, gateway.NewRouter())
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("restconf server stopped")
		}
	}()

	return &runningServer{rpcListener: ln, privListener: privLn, restconf: gateway, httpServer: httpSrv}, nil
}

// privilegedListener opens the dedicated privileged socket named by
// cfg.PrivilegedSocketAddress, mode 0700 so only the daemon's own user
// can connect (spec §4.G kill-session, mirroring original_source's
// group-restricted CLICON_SOCK). Returns nil, nil if no privileged
// socket is configured (only possible for a non-unix transport).
func privilegedListener(cfg *config.Config) (net.Listener, error) {
	if cfg.PrivilegedSocketAddress == "" {
		return nil, nil
	}
	os.Remove(cfg.PrivilegedSocketAddress)
	ln, err := net.Listen("unix", cfg.PrivilegedSocketAddress)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(cfg.PrivilegedSocketAddress, 0o700); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

func (s *runningServer) serve(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *runningServer) stop() {
	if s.rpcListener != nil {
		s.rpcListener.Close()
	}
	if s.privListener != nil {
		s.privListener.Close()
	}
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

func socketNetworkAddress(cfg *config.Config) (network, address string) {
	switch cfg.Transport {
	case config.TransportIPv4:
		return "tcp4", cfg.SocketAddress
	case config.TransportIPv6:
		return "tcp6", cfg.SocketAddress
	default:
		return "unix", cfg.SocketAddress
	}
}

func applyLogTarget(cfg *config.Config) {
	if cfg.Log.File == "" {
		return
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		log.WithError(err).Warn("failed to open log file, keeping stderr")
		return
	}
	log.SetOutput(f)
}

func setupCloseHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-c
		log.WithField("signal", sig.String()).Info("received signal, terminating")
		stop = true
		cancel()
		time.Sleep(500 * time.Millisecond)
		os.Exit(0)
	}()
}
