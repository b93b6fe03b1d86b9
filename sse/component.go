package sse

import (
	"context"
	"fmt"

	"github.com/kbukum/primepos-supervisor/component"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component ties a Hub to the application lifecycle. Stopping it disconnects
// every client so HTTP shutdown is not held up by open streams.
type Component struct {
	hub  *Hub
	path string
}

// NewComponent creates a component with a fresh Hub served at path.
func NewComponent(path string) *Component {
	return &Component{hub: NewHub(), path: path}
}

// Hub returns the underlying hub.
func (c *Component) Hub() *Hub { return c.hub }

// Name returns the component name.
func (c *Component) Name() string { return "log-stream" }

// Start is a no-op; the hub is passive.
func (c *Component) Start(context.Context) error { return nil }

// Stop disconnects every client.
func (c *Component) Stop(context.Context) error {
	c.hub.Stop()
	return nil
}

// Health is always healthy and reports the client count.
func (c *Component) Health(context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
}

// Describe returns summary info for the startup display.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Log Stream",
		Type:    "sse",
		Details: "GET " + c.path,
	}
}
