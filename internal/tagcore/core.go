// Package tagcore wires together the Registry and Administrative channel
// into a single process-wide context, assembling the concrete
// dependencies a running daemon needs behind one constructor.
package tagcore

import (
	"context"
	"time"

	"github.com/hmsnyder/tagfd/internal/admin"
	"github.com/hmsnyder/tagfd/internal/endpoint"
	"github.com/hmsnyder/tagfd/internal/registry"
	"github.com/hmsnyder/tagfd/internal/tagerr"
	"github.com/hmsnyder/tagfd/internal/tagmetrics"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Core is the process-wide core context: the Registry of live tags plus
// the single Administrative channel fronting it. One Core backs one
// running tagfdd.
type Core struct {
	Registry *registry.Registry
	Admin    *admin.Channel
	Metrics  *tagmetrics.Set
}

// New constructs a Core with the given tag capacity and a fresh metrics
// registry.
func New(capacity int) *Core {
	reg := registry.New(capacity)
	return &Core{
		Registry: reg,
		Admin:    admin.New(reg),
		Metrics:  tagmetrics.New(),
	}
}

// OpenEndpoint attaches a new session to an existing tag by name.
func (c *Core) OpenEndpoint(name string) (*endpoint.Endpoint, error) {
	return endpoint.Open(c.Registry, name)
}

// CreateTag creates a new tag through a freshly opened, then immediately
// closed, administrative session — the shape a one-shot creation request
// (a test helper) wants, as opposed to a long-lived admin.Session
// held across many creations.
func (c *Core) CreateTag(dtype tagtype.DType, name string) (*registry.Tag, error) {
	sess, err := c.Admin.Open()
	if err != nil {
		c.Metrics.AdminBusyTotal.Inc()
		return nil, err
	}
	defer sess.Close()

	tag, err := sess.CreateTag(dtype, name)
	if err != nil {
		code, ok := tagerr.Of(err)
		if !ok {
			code = "unknown"
		}
		c.Metrics.CreateRejected.WithLabelValues(string(code)).Inc()
		return nil, err
	}
	c.Metrics.TagsCreated.Inc()
	return tag, nil
}

// List enumerates every live tag, in creation order.
func (c *Core) List() []*registry.Tag {
	return c.Registry.List()
}

// WriteValue commits candidate to the named tag through a short-lived
// endpoint, recording commit/rejection metrics by tag name and error code.
func (c *Core) WriteValue(name string, candidate tagtype.Value) error {
	ep, err := c.OpenEndpoint(name)
	if err != nil {
		return err
	}
	defer ep.Close()

	if err := ep.Write(candidate); err != nil {
		code, ok := tagerr.Of(err)
		if !ok {
			code = "unknown"
		}
		c.Metrics.CommitRejected.WithLabelValues(string(code)).Inc()
		return err
	}
	c.Metrics.Commits.WithLabelValues(name).Inc()
	return nil
}

// ReadValue reads the named tag's latest value through a short-lived
// endpoint with no last_seen history, so it always returns immediately
// with whatever is currently stored — suited to one-shot reads but not to
// a polling session, which must keep its own long-lived
// Endpoint across calls to track last_seen. When the read blocks,
// PollWaitLatency records how long it was suspended before waking.
func (c *Core) ReadValue(ctx context.Context, name string, nonblocking bool) (tagtype.Value, error) {
	ep, err := c.OpenEndpoint(name)
	if err != nil {
		return tagtype.Value{}, err
	}
	defer ep.Close()

	start := time.Now()
	v, err := ep.Read(ctx, nonblocking)
	if !nonblocking {
		c.Metrics.PollWaitLatency.Observe(time.Since(start).Seconds())
	}
	return v, err
}
