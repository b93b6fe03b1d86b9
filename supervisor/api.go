package supervisor

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/primepos-supervisor/server"
	"github.com/kbukum/primepos-supervisor/sse"
)

// Management API paths.
const (
	PathProcesses = "/processes"
	PathProcess   = "/processes/:name"
	PathLogs      = "/processes/:name/logs"
)

// ActionResult is the body of a successful control request.
type ActionResult struct {
	App       string           `json:"app"`
	Action    string           `json:"action"`
	Instances []InstanceStatus `json:"instances"`
}

type handler struct {
	m *Manager
}

// RegisterRoutes mounts the process endpoints on r. The control handlers
// run before the state-changing routes, typically a rate limiter.
func RegisterRoutes(r gin.IRouter, m *Manager, control ...gin.HandlerFunc) {
	h := &handler{m: m}

	r.GET(PathProcesses, h.list)
	r.GET(PathProcess, h.get)

	for _, a := range []struct {
		name string
		fn   gin.HandlerFunc
	}{
		{"restart", h.restart},
		{"stop", h.stop},
		{"start", h.start},
	} {
		chain := append(append([]gin.HandlerFunc{}, control...), a.fn)
		r.POST(PathProcess+"/"+a.name, chain...)
	}
}

func (h *handler) list(c *gin.Context) {
	server.RespondOK(c, h.m.Status())
}

func (h *handler) get(c *gin.Context) {
	status, err := h.m.AppStatus(c.Param("name"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, status)
}

func (h *handler) restart(c *gin.Context) {
	h.act(c, "restart", h.m.Restart)
}

func (h *handler) stop(c *gin.Context) {
	h.act(c, "stop", h.m.StopApp)
}

func (h *handler) start(c *gin.Context) {
	h.act(c, "start", h.m.StartApp)
}

func (h *handler) act(c *gin.Context, action string, fn func(context.Context, string) error) {
	name := c.Param("name")
	if err := fn(c.Request.Context(), name); err != nil {
		_ = c.Error(err)
		server.RespondWithError(c, err)
		return
	}
	status, err := h.m.AppStatus(name)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondAccepted(c, ActionResult{App: name, Action: action, Instances: status})
}

// RegisterLogStream mounts a server-sent event stream of an app's output
// and state changes on r. Events reach hub through a Manager created
// WithEvents(hub).
func RegisterLogStream(r gin.IRouter, m *Manager, hub *sse.Hub) {
	r.GET(PathLogs, func(c *gin.Context) {
		name := c.Param("name")
		if _, err := m.AppStatus(name); err != nil {
			server.RespondWithError(c, err)
			return
		}
		id := "logs:" + name + ":" + uuid.NewString()
		sse.ServeSSE(hub, c.Writer, c.Request, id, sse.WithMetadata("app", name))
	})
}
