package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/golovatskygroup/compliance-mcp/internal/compliance"
	"github.com/golovatskygroup/compliance-mcp/pkg/mcp"
)

// MessagesPath is where SSE clients post their JSON-RPC messages.
const MessagesPath = "/messages/"

// HTTPOptions configures the HTTP surface.
type HTTPOptions struct {
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer        prometheus.Gatherer
	DevelopmentMode bool
	// Heartbeat is the SSE keep-alive interval (default 30s).
	Heartbeat time.Duration
	Debug     bool
}

type httpHandler struct {
	srv      *Server
	sessions *sessionStore
	opts     HTTPOptions
}

// Router builds the gin engine serving the status page, SSE sessions, the
// tool listing, health and metrics.
func (s *Server) Router(opts HTTPOptions) *gin.Engine {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &httpHandler{srv: s, sessions: newSessionStore(), opts: opts}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	engine.Use(cors.New(corsConfig))

	engine.GET("/", h.handleHome)
	engine.GET("/sse", h.handleSSE)
	engine.POST(MessagesPath, h.handleMessage)
	engine.GET("/api/tools", h.handleTools)
	engine.GET("/healthz", h.handleHealth)
	if opts.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return engine
}

func (h *httpHandler) handleSSE(c *gin.Context) {
	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	sess := h.sessions.open(c.Request.Context())
	defer h.sessions.close(sess.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	log := h.srv.logger.With("session_id", sess.id)
	log.Info("SSE session opened")
	defer log.Info("SSE session closed")

	if _, err := fmt.Fprintf(w, "event: endpoint\ndata: %s?session_id=%s\n\n", MessagesPath, sess.id); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case resp := <-sess.out:
			data, err := json.Marshal(resp)
			if err != nil {
				log.Error("failed to encode response", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
				log.Warn("failed to send SSE message", "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-sess.ctx.Done():
			return
		}
	}
}

func (h *httpHandler) handleMessage(c *gin.Context) {
	id := c.Query("session_id")
	if id == "" {
		c.String(http.StatusBadRequest, "session_id is required")
		return
	}
	sess, ok := h.sessions.get(id)
	if !ok {
		c.String(http.StatusNotFound, "Could not find session")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.String(http.StatusBadRequest, "Could not read message")
		return
	}
	req, err := mcp.DecodeRequest(body)
	if err != nil {
		c.String(http.StatusBadRequest, "Could not parse message")
		return
	}

	c.String(http.StatusAccepted, "Accepted")

	go func() {
		if resp := h.srv.Handle(sess.ctx, req); resp != nil {
			sess.deliver(resp)
		}
	}()
}

func (h *httpHandler) handleTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.srv.dispatcher.Tools()})
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"development_mode": h.opts.DevelopmentMode,
		"sessions":         h.sessions.len(),
	})
}

type homePage struct {
	Name            string
	Version         string
	DevelopmentMode bool
	Tools           []compliance.ToolDescriptor
}

func (h *httpHandler) handleHome(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	err := homeTemplate.Execute(c.Writer, homePage{
		Name:            ServerName,
		Version:         ServerVersion,
		DevelopmentMode: h.opts.DevelopmentMode,
		Tools:           h.srv.dispatcher.Tools(),
	})
	if err != nil {
		h.srv.logger.Error("render status page", "error", err)
	}
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Fintech Compliance MCP Server</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; line-height: 1.6; color: #333; }
h1, h2 { color: #2563eb; }
.card { border: 1px solid #e5e7eb; border-radius: 8px; padding: 20px; margin-bottom: 20px; }
.tool { background-color: #f9fafb; padding: 15px; border-radius: 6px; margin-bottom: 10px; }
.tool h3 { margin-top: 0; color: #4b5563; }
.status { font-weight: bold; }
.connected { color: #059669; }
.disconnected { color: #dc2626; }
button { background-color: #2563eb; color: white; border: none; padding: 10px 15px; border-radius: 6px; cursor: pointer; }
code { background-color: #f3f4f6; padding: 2px 4px; border-radius: 4px; }
</style>
</head>
<body>
<h1>Fintech Compliance MCP Server</h1>
<div class="card">
<h2>Server</h2>
<p>{{.Name}} {{.Version}}{{if .DevelopmentMode}} (development mode, mock data){{end}}</p>
<p>SSE endpoint: <code>/sse</code></p>
<p>Status: <span id="status" class="status disconnected">Disconnected</span></p>
<button id="connect">Connect to SSE</button>
</div>
<div class="card">
<h2>Available Tools</h2>
{{range .Tools}}<div class="tool">
<h3>{{.Name}}</h3>
<p>{{.Description}}</p>
{{if .Parameters}}<p>Parameters:</p>
<ul>{{range .Parameters}}<li><code>{{.Name}}</code> ({{.Type}}): {{.Description}}</li>{{end}}</ul>{{else}}<p>No parameters.</p>{{end}}
</div>
{{end}}</div>
<script>
let source = null;
const button = document.getElementById('connect');
const status = document.getElementById('status');
button.addEventListener('click', () => {
  if (source) {
    source.close();
    source = null;
    status.textContent = 'Disconnected';
    status.className = 'status disconnected';
    button.textContent = 'Connect to SSE';
    return;
  }
  source = new EventSource('/sse');
  source.addEventListener('endpoint', () => {
    status.textContent = 'Connected';
    status.className = 'status connected';
    button.textContent = 'Disconnect';
  });
  source.onerror = () => {
    status.textContent = 'Connection error';
    status.className = 'status disconnected';
  };
});
</script>
</body>
</html>
`))
