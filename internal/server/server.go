// Package server orchestrates all host components: COMMS, the object
// registry, the dispatcher with its backends, the page transport and the
// HTTP status endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/webapps-bridge/internal/config"
	"github.com/morezero/webapps-bridge/pkg/backends"
	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/commsutil"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
	"github.com/morezero/webapps-bridge/pkg/events"
	"github.com/morezero/webapps-bridge/pkg/objects"
	"github.com/morezero/webapps-bridge/pkg/transport"
)

const logPrefix = "server:server"

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 10 * time.Second

// HealthChecks lists the individual health checks.
type HealthChecks struct {
	Comms     bool `json:"comms"`
	Transport bool `json:"transport"`
}

// HealthOutput is the /health response.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Objects   int          `json:"objects"`
	Sessions  int          `json:"sessions"`
	Timestamp string       `json:"timestamp"`
}

// Server is the webapps-host orchestrator.
type Server struct {
	cfg      *config.Config
	manifest *bootstrap.ResolvedManifest

	ns       *commsserver.Server
	nc       *comms.Conn
	commsURL string

	objects  *objects.Registry
	disp     *dispatcher.Dispatcher
	backends *backends.Set
	hostNATS *transport.NATS

	httpServer *http.Server
	listener   net.Listener

	// mu guards sockets, plus nc and hostNATS once Start has run.
	mu      sync.Mutex
	sockets map[*transport.WebSocket]struct{}
	ready   atomic.Bool
}

// New creates a Server for cfg serving the namespaces of m. Nothing is
// started until Start.
func New(cfg *config.Config, m *bootstrap.Manifest) *Server {
	return &Server{
		cfg:      cfg,
		manifest: bootstrap.CreateResolvedManifest(m),
		sockets:  make(map[*transport.WebSocket]struct{}),
	}
}

// Run loads configuration, starts the host, blocks until a shutdown signal,
// then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting webapps-host", logPrefix))

	m, err := bootstrap.LoadManifest(cfg.ManifestFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load manifest: %w", logPrefix, err)
	}

	s := New(cfg, m)
	if err := s.Start(context.Background()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Start brings every component up in order. On failure everything started
// so far is torn down again.
func (s *Server) Start(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			s.teardown(context.Background())
		}
	}()

	// Step 1: COMMS, embedded or external
	s.commsURL = s.cfg.COMMSURL
	if s.cfg.COMMSEmbedded {
		ns, err := commsutil.StartEmbedded("127.0.0.1", s.cfg.COMMSEmbeddedPort, 0)
		if err != nil {
			return fmt.Errorf("%s - failed to start embedded COMMS: %w", logPrefix, err)
		}
		s.ns = ns
		s.commsURL = ns.ClientURL()
	}

	needComms := s.cfg.Transport == config.TransportNATS
	if needComms || s.cfg.ObjectEventsEnabled {
		nc, err := commsutil.Connect(s.commsURL, s.cfg.COMMSName)
		switch {
		case err == nil:
			s.mu.Lock()
			s.nc = nc
			s.mu.Unlock()
		case needComms:
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		default:
			slog.Warn(fmt.Sprintf("%s - COMMS unavailable, object events disabled: %v", logPrefix, err))
		}
	}

	// Step 2: object registry and lifecycle events
	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if s.nc != nil && s.cfg.ObjectEventsEnabled {
		subject := s.cfg.ObjectEventSubject
		if subject == "" {
			subject = s.manifest.GlobalObjectEventSubject()
		}
		publisher = events.NewCommsPublisher(s.nc, &events.CommsPublisherOpts{GlobalSubject: subject})
		slog.Info(fmt.Sprintf("%s - Publishing object events to %s", logPrefix, subject))
	}
	s.objects = objects.NewRegistry(objects.Options{Publisher: publisher})

	// Step 3: dispatcher and backends
	s.disp = dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{Objects: s.objects})
	s.backends = backends.New(s.manifest.Manifest(), backends.Options{})
	s.backends.Register(s.disp)
	slog.Info(fmt.Sprintf("%s - Serving %d methods and %d object methods", logPrefix, len(s.disp.Methods()), len(s.disp.ClassMethods())))

	// Step 4: page transport
	if s.cfg.Transport == config.TransportNATS {
		t, err := transport.NewNATSHost(s.nc, s.cfg.Session)
		if err != nil {
			return fmt.Errorf("%s - failed to open session %s: %w", logPrefix, s.cfg.Session, err)
		}
		s.mu.Lock()
		s.hostNATS = t
		s.mu.Unlock()
		s.disp.Attach(t)
		slog.Info(fmt.Sprintf("%s - Serving session %s over COMMS", logPrefix, s.cfg.Session))
	}

	// Step 5: HTTP status server
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, s.cfg.ListenAddr(), err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, ln.Addr()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	s.ready.Store(true)
	slog.Info(fmt.Sprintf("%s - webapps-host is ready", logPrefix))
	return nil
}

// Shutdown tells content the application is about to quit, then stops
// every component.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	if s.backends != nil {
		s.backends.Shutdown(false)
	}
	if session := s.session(); session != nil {
		if err := session.Flush(); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to flush session: %v", logPrefix, err))
		}
	}
	err := s.teardown(ctx)
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return err
}

func (s *Server) teardown(ctx context.Context) error {
	var err error

	s.mu.Lock()
	sockets := make([]*transport.WebSocket, 0, len(s.sockets))
	for ws := range s.sockets {
		sockets = append(sockets, ws)
	}
	s.sockets = make(map[*transport.WebSocket]struct{})
	s.mu.Unlock()
	for _, ws := range sockets {
		ws.Close()
	}

	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
		s.httpServer = nil
	} else if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	session, nc := s.hostNATS, s.nc
	s.hostNATS, s.nc = nil, nil
	s.mu.Unlock()
	if session != nil {
		session.Close()
	}
	if nc != nil {
		if drainErr := nc.Drain(); drainErr != nil {
			slog.Warn(fmt.Sprintf("%s - COMMS drain failed: %v", logPrefix, drainErr))
		}
	}
	if s.ns != nil {
		commsutil.StopEmbedded(s.ns)
		s.ns = nil
	}
	return err
}

// Addr returns the HTTP listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// CommsURL returns the COMMS URL pages should connect to.
func (s *Server) CommsURL() string { return s.commsURL }

// Backends returns the native backends once started.
func (s *Server) Backends() *backends.Set { return s.backends }

// Objects returns the object registry once started.
func (s *Server) Objects() *objects.Registry { return s.objects }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", s.handleReady())
	if s.cfg.Transport == config.TransportWebSocket {
		mux.HandleFunc(s.cfg.WebSocketPath, s.handleBridge())
	}
	return mux
}

// Health checks the COMMS connection and the page transport.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	s.mu.Lock()
	nc, session := s.nc, s.hostNATS
	s.mu.Unlock()

	commsOk := true
	if nc != nil {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.HealthCheckTimeout)
			defer cancel()
		}
		commsOk = nc.IsConnected() && nc.FlushWithContext(ctx) == nil
	} else if s.cfg.Transport == config.TransportNATS {
		commsOk = false
	}

	transportOk := s.ready.Load()
	if s.cfg.Transport == config.TransportNATS {
		transportOk = transportOk && session != nil
	}

	status := "healthy"
	if !commsOk || !transportOk {
		status = "unhealthy"
	}

	out := &HealthOutput{
		Status:    status,
		Checks:    HealthChecks{Comms: commsOk, Transport: transportOk},
		Sessions:  s.sessionCount(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.objects != nil {
		out.Objects = s.objects.Len()
	}
	return out
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Transport == config.TransportNATS {
		if s.hostNATS != nil {
			return 1
		}
		return 0
	}
	return len(s.sockets)
}

// session returns the COMMS page transport, or nil once torn down.
func (s *Server) session() *transport.NATS {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostNATS
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.Health(ctx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	}
}

func (s *Server) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ready"
		if !s.ready.Load() {
			status = "starting"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

// handleBridge upgrades page connections and attaches each one to the
// dispatcher. Every connection shares the backends and the object registry.
func (s *Server) handleBridge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		ws, err := transport.Accept(w, r, transport.AcceptOptions{})
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - bridge upgrade failed: %v", logPrefix, err))
			return
		}

		s.mu.Lock()
		s.sockets[ws] = struct{}{}
		s.mu.Unlock()
		s.disp.Attach(ws)

		go func() {
			<-ws.Done()
			s.mu.Lock()
			delete(s.sockets, ws)
			s.mu.Unlock()
			slog.Info(fmt.Sprintf("%s - Page %s disconnected", logPrefix, r.RemoteAddr))
		}()
	}
}

// homePageTemplate is the HTML for the host status page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Webapps Host</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    .disabled { color: #999; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>Webapps Host</h1>
  <p class="meta">{{.Manifest.Name}} {{.Manifest.Version}}, {{.Transport}} transport{{if .Session}}, session {{.Session}}{{end}}.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Connected pages: <span class="stat">{{.Health.Sessions}}</span></p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>API versions</h2>
    <table>
      <thead><tr><th>Version</th><th>Status</th></tr></thead>
      <tbody>
        {{range .Manifest.APIVersions}}<tr><td>{{.Version}}</td><td>{{.Status}}</td></tr>{{end}}
      </tbody>
    </table>
  </section>

  <section>
    <h2>Namespaces</h2>
    <table>
      <thead><tr><th>Namespace</th><th>Description</th><th>Methods</th></tr></thead>
      <tbody>
        {{range .Namespaces}}
        <tr{{if not .Enabled}} class="disabled"{{end}}>
          <td>{{.Name}}</td>
          <td>{{.Description}}</td>
          <td>{{range .Methods}}{{.}} {{end}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
  </section>

  <section>
    <h2>Live objects</h2>
    <p>Total: <span class="stat">{{len .Objects}}</span></p>
    {{if .Objects}}
    <table>
      <thead><tr><th>Id</th><th>API</th><th>Class</th><th>Created</th></tr></thead>
      <tbody>
        {{range .Objects}}
        <tr><td>{{.ID}}</td><td>{{.URI}}</td><td>{{.ClassName}}</td><td>{{.CreatedAt.Format "2006-01-02T15:04:05Z07:00"}}</td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

type namespaceRow struct {
	Name        string
	Description string
	Enabled     bool
	Methods     []string
}

// homeData is the data passed to the home page template.
type homeData struct {
	Manifest   *bootstrap.Manifest
	Transport  string
	Session    string
	Health     *HealthOutput
	Namespaces []namespaceRow
	Objects    []objects.Entry
}

// handleHome returns an HTTP handler for the host status page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Manifest:  s.manifest.Manifest(),
			Transport: s.cfg.Transport,
			Health:    s.Health(ctx),
		}
		if s.cfg.Transport == config.TransportNATS {
			data.Session = s.cfg.Session
		}
		for name, ns := range s.manifest.List() {
			data.Namespaces = append(data.Namespaces, namespaceRow{
				Name:        name,
				Description: ns.Description,
				Enabled:     ns.Enabled,
				Methods:     ns.Methods,
			})
		}
		sort.Slice(data.Namespaces, func(i, j int) bool { return data.Namespaces[i].Name < data.Namespaces[j].Name })
		if s.objects != nil {
			data.Objects = s.objects.List()
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
