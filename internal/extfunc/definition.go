// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package extfunc exposes the basex-query extension function to a host XPath
// engine: its qualified name, its signatures and the call that turns actual
// arguments into a lazily evaluated result sequence.
package extfunc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cmarchand/xpath-basex-ext/internal/args"
	"github.com/cmarchand/xpath-basex-ext/internal/bridge"
	bxerrors "github.com/cmarchand/xpath-basex-ext/internal/errors"
)

const (
	Prefix    = "efl-ext"
	Namespace = "top:marchand:xml:extfunctions"
	LocalName = "basex-query"
)

// SequenceType is an XPath sequence type as written in a function signature.
type SequenceType string

const (
	TypeString  SequenceType = "xs:string"
	TypeElement SequenceType = "element()"
	TypeItems   SequenceType = "item()*"
)

// ErrNoSignature is returned for an arity the function does not declare.
var ErrNoSignature = errors.New("no signature with this arity")

// QName is a namespace-qualified function name.
type QName struct {
	Prefix string
	URI    string
	Local  string
}

// String returns the prefixed form, e.g. efl-ext:basex-query.
func (q QName) String() string {
	if q.Prefix == "" {
		return q.Local
	}
	return q.Prefix + ":" + q.Local
}

// Clark returns the {uri}local form used as a registry key.
func (q QName) Clark() string { return "{" + q.URI + "}" + q.Local }

// Function is what a host engine needs to bind and invoke an extension function.
type Function interface {
	QName() QName
	Arities() []int
	ArgumentTypes(arity int) ([]SequenceType, error)
	ResultType() SequenceType
	Call(ctx context.Context, values ...any) (*bridge.Sequence, error)
}

// Registry is implemented by hosts that accept extension functions.
type Registry interface {
	RegisterExtensionFunction(fn Function) error
}

var signatures = map[int][]SequenceType{
	2: {TypeString, TypeElement},
	5: {TypeString, TypeString, TypeString, TypeString, TypeString},
}

// Definition is the basex-query function. It holds only the bridge options it
// was built with, so one Definition may serve concurrent calls.
type Definition struct {
	opts []bridge.Option
}

var _ Function = (*Definition)(nil)

// New returns a Definition passing opts to every bridge.Open.
func New(opts ...bridge.Option) *Definition {
	return &Definition{opts: slices.Clone(opts)}
}

func (d *Definition) QName() QName {
	return QName{Prefix: Prefix, URI: Namespace, Local: LocalName}
}

func (d *Definition) Arities() []int { return []int{2, 5} }

func (d *Definition) ArgumentTypes(arity int) ([]SequenceType, error) {
	types, ok := signatures[arity]
	if !ok {
		return nil, fmt.Errorf("%s#%d: %w", d.QName(), arity, ErrNoSignature)
	}
	return slices.Clone(types), nil
}

func (d *Definition) ResultType() SequenceType { return TypeItems }

// Call resolves values and opens the result sequence. Argument problems are
// reported before any connection is attempted. The caller must Close the
// returned sequence unless it consumes it to the end.
func (d *Definition) Call(ctx context.Context, values ...any) (*bridge.Sequence, error) {
	req, err := args.Resolve(values)
	if err != nil {
		return nil, err
	}
	return bridge.Open(ctx, req, d.opts...)
}

// Register adds d to r.
func (d *Definition) Register(r Registry) error {
	return r.RegisterExtensionFunction(d)
}

// Catalog is a minimal Registry keyed by expanded name. It is safe for
// concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{funcs: map[string]Function{}}
}

// RegisterExtensionFunction adds fn. Registering the same name twice fails.
func (c *Catalog) RegisterExtensionFunction(fn Function) error {
	key := fn.QName().Clark()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.funcs[key]; dup {
		return fmt.Errorf("function %s already registered", fn.QName())
	}
	c.funcs[key] = fn
	return nil
}

// Lookup finds the function named name that accepts arity arguments.
func (c *Catalog) Lookup(name QName, arity int) (Function, error) {
	c.mu.RLock()
	fn, ok := c.funcs[name.Clark()]
	c.mu.RUnlock()
	if !ok {
		return nil, bxerrors.New(bxerrors.ArgumentError, "unknown function "+name.Clark())
	}
	if !slices.Contains(fn.Arities(), arity) {
		return nil, bxerrors.Wrap(bxerrors.ArgumentError,
			fmt.Sprintf("%s#%d", name, arity), ErrNoSignature)
	}
	return fn, nil
}

// Functions returns the registered functions ordered by expanded name.
func (c *Catalog) Functions() []Function {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.funcs))
	for k := range c.funcs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Function, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.funcs[k])
	}
	return out
}
