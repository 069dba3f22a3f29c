// Package message is the minimal message abstraction the claim store works
// against: a swappable body stream and a property context with write and
// promote semantics.
package message

import (
	stderrors "errors"
	"io"
	"sort"
)

// Well-known context properties describing the body's identity.
const (
	PropMessageType      = "MessageType"
	PropSchemaStrongName = "SchemaStrongName"
)

// Message is a body stream plus its context.
type Message struct {
	Body    io.Reader
	Context *Context
}

// New returns a message over body with an empty context.
func New(body io.Reader) *Message {
	return &Message{Body: body, Context: NewContext()}
}

// SetBody replaces the body as a whole.
func (m *Message) SetBody(body io.Reader) {
	m.Body = body
}

type entry struct {
	value    string
	promoted bool
}

// Context is a key/value property bag. Written properties are stored only;
// promoted properties are also visible for routing.
type Context struct {
	props map[string]entry
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{props: make(map[string]entry)}
}

// Write stores a value without promoting it. A previously promoted property
// is demoted.
func (c *Context) Write(property, value string) {
	c.props[property] = entry{value: value}
}

// Promote stores a value and makes it routable.
func (c *Context) Promote(property, value string) {
	c.props[property] = entry{value: value, promoted: true}
}

// Read returns a stored value.
func (c *Context) Read(property string) (string, bool) {
	e, ok := c.props[property]
	return e.value, ok
}

// IsPromoted reports whether a property is stored and routable.
func (c *Context) IsPromoted(property string) bool {
	return c.props[property].promoted
}

// Promoted returns the routable properties, sorted by name.
func (c *Context) Promoted() []string {
	var names []string
	for name, e := range c.props {
		if e.promoted {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ResourceTracker takes ownership of resources whose lifetime must match the
// message's.
type ResourceTracker interface {
	Track(c io.Closer)
}

// Resources is a ResourceTracker that closes everything it tracks, most
// recently tracked first.
type Resources struct {
	closers []io.Closer
}

// Track implements ResourceTracker.
func (r *Resources) Track(c io.Closer) {
	if c != nil {
		r.closers = append(r.closers, c)
	}
}

// Len is the number of tracked resources.
func (r *Resources) Len() int {
	return len(r.closers)
}

// Close closes every tracked resource and reports all failures.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return stderrors.Join(errs...)
}
