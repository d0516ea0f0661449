package reload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/magic-framework/magic/internal/build"
	"github.com/magic-framework/magic/internal/errors"
	"github.com/magic-framework/magic/internal/logging"
)

// Endpoints served next to the project files.
const (
	SocketPath = "/__magic/ws"
	HealthPath = "/__magic/health"
)

// clientScript is appended to every HTML page served from the dist directory.
const clientScript = `(function () {
  var socket = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "` + SocketPath + `");
  socket.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.type === "reload") {
      location.reload();
    } else if (msg.type === "error") {
      console.error("magic: build failed\n" + (msg.diagnostics || []).join("\n"));
    }
  };
})();`

// Options configures a Server.
type Options struct {
	Host    string
	Port    int
	DistDir string
	// AllowedOrigins defaults to the server address plus its localhost aliases.
	AllowedOrigins []string
	// Metrics, when set, are reported by the health endpoint.
	Metrics *build.BuildMetrics
	Logger  logging.Logger
}

// Server serves DistDir over HTTP and pushes reload messages to browsers.
type Server struct {
	opts         Options
	hub          *Hub
	httpServer   *http.Server
	logger       logging.Logger
	shutdownOnce sync.Once

	distMu  sync.RWMutex
	distDir string
}

// New creates a Server. It does not listen until Run is called.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = defaultOrigins(opts.Host, opts.Port)
	}

	s := &Server{
		opts:    opts,
		hub:     NewHub(opts.AllowedOrigins, opts.Logger),
		logger:  opts.Logger.WithComponent("reload"),
		distDir: opts.DistDir,
	}
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler serving files, the socket and health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(SocketPath, s.hub)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc("/", s.handleStatic)
	return chain(mux, s.logRequests, securityHeaders)
}

// Run serves until ctx is cancelled. The hub runs for the same lifetime.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(hubCtx)

	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.NewFatalStartupError(errors.ErrCodeServerListen,
			fmt.Sprintf("cannot listen on %s", s.Addr()), err)
	}

	s.logger.Info(ctx, "Serving project", "url", "http://"+s.Addr(), "dir", s.DistDir())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the HTTP server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// BuildCompleted tells browsers about a finished build. Successful builds
// trigger a reload; failures forward the diagnostics.
func (s *Server) BuildCompleted(outcome build.Outcome) {
	if outcome.Success {
		s.hub.Broadcast(Message{Type: MessageReload})
		return
	}
	s.hub.Broadcast(Message{Type: MessageError, Diagnostics: outcome.Diagnostics})
}

// SettingsChanged serves the dist directory of the new build settings.
func (s *Server) SettingsChanged(settings build.Settings) {
	s.distMu.Lock()
	defer s.distMu.Unlock()
	if settings.DistDir != s.distDir {
		s.logger.Info(context.Background(), "Serving new dist directory", "dir", settings.DistDir)
	}
	s.distDir = settings.DistDir
}

// DistDir returns the directory currently served.
func (s *Server) DistDir() string {
	s.distMu.RLock()
	defer s.distMu.RUnlock()
	return s.distDir
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	}
	if s.opts.Metrics != nil {
		health["builds"] = s.opts.Metrics.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, "index.html")
	}
	file := filepath.Join(s.DistDir(), filepath.FromSlash(name))

	if !strings.EqualFold(path.Ext(name), ".html") {
		http.ServeFile(w, r, file)
		return
	}

	content, err := os.ReadFile(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	injected, err := InjectScript(content)
	if err != nil {
		s.logger.Warn(r.Context(), err, "Serving page without reload script", "file", file)
		injected = content
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(injected)
}

// InjectScript appends the reload client to the body of an HTML document.
func InjectScript(page []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return nil, fmt.Errorf("document has no body")
	}

	script := &html.Node{Type: html.ElementNode, DataAtom: atom.Script, Data: "script"}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: clientScript})
	body.AppendChild(script)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func defaultOrigins(host string, port int) []string {
	p := strconv.Itoa(port)
	origins := []string{net.JoinHostPort(host, p)}
	for _, alias := range []string{"localhost", "127.0.0.1"} {
		if alias != host {
			origins = append(origins, net.JoinHostPort(alias, p))
		}
	}
	return origins
}

// originHosts reduces allowed origins to the host patterns websocket.Accept
// matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, origin)
	}
	return hosts
}
