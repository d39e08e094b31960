package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"clamor/internal/chat"
	"clamor/internal/config"
	"clamor/internal/router"
	"clamor/internal/theme"
)

const version = "dev"

// Runtime wires config + middleware + the Wish server as a testable unit.
// It owns the session registry; connection goroutines reach it only
// through the negotiator and the broadcast router.
type Runtime struct {
	cfg           config.Config
	logger        *log.Logger
	middlewareIDs []string
	registry      *chat.Registry
	server        *ssh.Server
}

// New builds the server. A host key is loaded from cfg.HostKeyPath
// (generated on first start); failure to do so aborts startup before any
// connection is accepted.
func New(cfg config.Config, chain []router.Descriptor, logger *log.Logger) (*Runtime, error) {
	if logger == nil {
		logger = log.Default()
	}

	registry := chat.NewRegistry()
	negotiator := chat.NewNegotiator(registry)
	room := chat.NewRouter(registry, theme.Default(), logger)

	// Wish composes middleware back to front: the first element wraps the
	// innermost handler. The chat handler goes first, the descriptor chain
	// (already reversed) after it, leaving chain[0] outermost.
	middleware := append(
		[]wish.Middleware{chatMiddleware(room, logger)},
		router.MiddlewareFromDescriptors(chain)...,
	)

	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	wishServer, err := wish.NewServer(
		wish.WithAddress(address),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithKeyboardInteractiveAuth(keyboardInteractiveAuth(negotiator, registry, logger)),
		wish.WithMiddleware(middleware...),
	)
	if err != nil {
		return nil, fmt.Errorf("build ssh server: %w", err)
	}

	ids := make([]string, 0, len(chain))
	for _, descriptor := range chain {
		ids = append(ids, descriptor.Name)
	}

	return &Runtime{
		cfg:           cfg,
		logger:        logger,
		middlewareIDs: ids,
		registry:      registry,
		server:        wishServer,
	}, nil
}

// MiddlewareIDs returns the descriptor names in chain order.
func (r *Runtime) MiddlewareIDs() []string {
	out := make([]string, len(r.middlewareIDs))
	copy(out, r.middlewareIDs)
	return out
}

func (r *Runtime) Address() string {
	return r.server.Addr
}

// Registry exposes the member set for observability surfaces.
func (r *Runtime) Registry() *chat.Registry {
	return r.registry
}

// Run binds the listener, signals readiness, and serves until the context
// is canceled or an interrupt/terminate signal arrives. A bind failure is
// fatal; it is the only runtime error besides host-key loading that aborts
// the whole process.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	listener, err := net.Listen("tcp", r.server.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", r.server.Addr, err)
	}

	go func() {
		<-ctx.Done()
		_ = r.server.Shutdown(context.Background())
	}()

	r.logger.Info("listening",
		"version", version,
		"address", listener.Addr().String(),
		"middleware", r.middlewareIDs,
		"host_key_path", r.cfg.HostKeyPath,
		"idle_timeout", r.cfg.IdleTimeout,
	)
	r.signalReady()

	err = r.server.Serve(listener)
	if errors.Is(err, ssh.ErrServerClosed) || err == nil {
		return nil
	}

	return err
}

// signalReady writes the parent-process readiness handshake, if a ready fd
// was configured.
func (r *Runtime) signalReady() {
	if r.cfg.ReadyFD <= 0 {
		return
	}
	f := os.NewFile(uintptr(r.cfg.ReadyFD), "ready-fd")
	if f == nil {
		r.logger.Warn("readiness fd is not open", "fd", r.cfg.ReadyFD)
		return
	}
	defer f.Close()
	if _, err := f.Write([]byte("ready\n")); err != nil {
		r.logger.Warn("readiness signal failed", "fd", r.cfg.ReadyFD, "err", err)
	}
}
