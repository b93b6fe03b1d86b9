package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/primepos-supervisor/component"
)

// InfrastructureInfo holds a component's self-reported description.
type InfrastructureInfo struct {
	Name    string
	Type    string // e.g. "supervisor", "server"
	Details string
	Port    int
}

// ProcessInfo describes one supervised application.
type ProcessInfo struct {
	Name      string
	Script    string
	Instances int
}

// RouteInfo represents a registered HTTP route.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
}

// Summary tracks and displays the application bootstrap process.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	infrastructure  []InfrastructureInfo
	processes       []ProcessInfo
	routes          []RouteInfo
}

// NewSummary creates a new bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
	}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackInfrastructure adds a component with descriptive metadata.
func (s *Summary) TrackInfrastructure(name, componentType, details string, port int) {
	s.infrastructure = append(s.infrastructure, InfrastructureInfo{
		Name:    name,
		Type:    componentType,
		Details: details,
		Port:    port,
	})
}

// TrackProcess records a supervised application.
func (s *Summary) TrackProcess(name, script string, instances int) {
	s.processes = append(s.processes, ProcessInfo{Name: name, Script: script, Instances: instances})
}

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(method, path, handler string) {
	s.routes = append(s.routes, RouteInfo{
		Method:  method,
		Path:    path,
		Handler: handler,
	})
}

// collect pulls descriptions and routes from components that provide them.
func (s *Summary) collect(registry *component.Registry) {
	if registry == nil {
		return
	}
	for _, c := range registry.All() {
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			name := desc.Name
			if name == "" {
				name = c.Name()
			}
			s.TrackInfrastructure(name, desc.Type, desc.Details, desc.Port)
		}
		if rp, ok := c.(component.RouteProvider); ok {
			for _, r := range rp.Routes() {
				s.TrackRoute(r.Method, r.Path, r.Handler)
			}
		}
	}
}

// Write prints the bootstrap summary including live health from the registry.
func (s *Summary) Write(w io.Writer, registry *component.Registry) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "🚀 %s v%s started in %.2fs\n\n",
		s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.infrastructure) > 0 {
		fmt.Fprintf(w, "📊 Components\n")
		for i, inf := range s.infrastructure {
			details := inf.Details
			if inf.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, inf.Port)
			}
			fmt.Fprintf(w, "   %s %s [%s]: %s\n", treePrefix(i, len(s.infrastructure)), inf.Name, inf.Type, details)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(s.processes) > 0 {
		fmt.Fprintf(w, "⚙️  Processes\n")
		for i, p := range s.processes {
			fmt.Fprintf(w, "   %s %s → %s ×%d\n", treePrefix(i, len(s.processes)), p.Name, p.Script, p.Instances)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(s.infrastructure) == 0 && len(s.processes) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n")
	}

	if len(s.routes) > 0 {
		fmt.Fprintf(w, "🌐 Routes (%d)\n", len(s.routes))
		for i, r := range s.routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", treePrefix(i, len(s.routes)), r.Method, r.Path, r.Handler)
		}
		fmt.Fprintf(w, "\n")
	}

	if registry != nil {
		healthResults := registry.HealthAll(context.Background())
		if len(healthResults) > 0 {
			fmt.Fprintf(w, "🏥 Health Check\n")
			for i, h := range healthResults {
				msg := ""
				if h.Message != "" {
					msg = fmt.Sprintf(" — %s", h.Message)
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(healthResults)),
					healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
			}
			fmt.Fprintf(w, "\n")
		}
	}
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
