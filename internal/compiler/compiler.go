package compiler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/ir"
	"github.com/hanpama/mgc/internal/language"
	"github.com/hanpama/mgc/internal/operator"
	"github.com/hanpama/mgc/internal/runid"
	"github.com/hanpama/mgc/internal/tensor"
)

// InputKey is the key of the node-label input node.
const InputKey = "x"

// Compiler turns formulas into models over a persistent node cache. Nodes
// are shared across every Compile call on the same Compiler, so related
// formulas reuse each other's computations.
type Compiler struct {
	ops    operator.Registries
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	cache  map[string]*ir.Node
	nextID int
	input  *ir.Node
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for compilation diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a compiler resolving names against ops. The configuration is
// validated up front.
func New(ops operator.Registries, cfg Config, opts ...Option) (*Compiler, error) {
	if ops.Psi == nil || ops.Sigma == nil || ops.Phi == nil {
		return nil, fmt.Errorf("compiler: psi, sigma and phi registries are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("compiler: invalid config: %w", err)
	}
	c := &Compiler{
		ops:    ops,
		cfg:    cfg,
		logger: zap.NewNop(),
		cache:  make(map[string]*ir.Node),
	}
	for _, o := range opts {
		o(c)
	}
	c.input = &ir.Node{ID: c.nextID, Key: InputKey, Kind: ir.KindInput, Width: cfg.Input.Node.Width}
	c.nextID++
	c.cache[InputKey] = c.input
	return c, nil
}

// Config returns the configuration the compiler was built with.
func (c *Compiler) Config() Config { return c.cfg }

// Len returns the number of cached nodes, the input node included.
func (c *Compiler) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Compile parses formula and compiles it.
func (c *Compiler) Compile(ctx context.Context, formula string) (*ir.Model, error) {
	e, err := language.Parse(formula)
	if err != nil {
		return nil, err
	}
	return c.compile(ctx, formula, e)
}

// CompileExpr compiles an already parsed expression.
func (c *Compiler) CompileExpr(ctx context.Context, e language.Expr) (*ir.Model, error) {
	return c.compile(ctx, e.Key(), e)
}

func (c *Compiler) compile(ctx context.Context, formula string, e language.Expr) (model *ir.Model, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, _ = runid.Ensure(ctx)
	mode := c.cfg.Input.Mode()
	eventbus.Publish(ctx, events.CompileStart{Formula: formula, Mode: mode})

	start := time.Now()
	w := &walker{c: c}
	defer func() {
		fin := events.CompileFinish{
			Formula:  formula,
			Mode:     mode,
			Created:  w.created,
			Reused:   w.reused,
			Err:      err,
			Duration: time.Since(start),
		}
		if model != nil {
			fin.Layers = model.Layers()
		}
		eventbus.Publish(ctx, fin)
	}()

	c.mu.Lock()
	out, err := w.expr(e, c.input)
	cached := len(c.cache)
	c.mu.Unlock()
	if err != nil {
		c.logger.Debug("compile failed", zap.String("formula", formula), zap.Error(err))
		return nil, err
	}
	model = ir.NewModel(formula, c.cfg.Input, out)
	c.logger.Debug("compiled formula",
		zap.String("formula", formula),
		zap.Int("created", w.created),
		zap.Int("reused", w.reused),
		zap.Int("layers", model.Layers()),
		zap.Int("cached", cached),
	)
	return model, nil
}

type binding struct {
	name string
	base string
	key  string
	fp   FixPointConfig
}

// walker compiles one expression. It runs with the compiler mutex held.
type walker struct {
	c       *Compiler
	scope   []binding
	created int
	reused  int
}

// intern returns the cached node for key or adds the node built by mk.
func (w *walker) intern(key string, mk func() (*ir.Node, error)) (*ir.Node, error) {
	if n, ok := w.c.cache[key]; ok {
		w.reused++
		return n, nil
	}
	n, err := mk()
	if err != nil {
		return nil, err
	}
	n.ID = w.c.nextID
	n.Key = key
	w.c.nextID++
	w.c.cache[key] = n
	w.created++
	w.c.logger.Debug("node created",
		zap.Int("id", n.ID),
		zap.String("key", key),
		zap.Stringer("kind", n.Kind),
		zap.Int("width", n.Width),
	)
	return n, nil
}

func (w *walker) lookup(name string) (binding, bool) {
	for i := len(w.scope) - 1; i >= 0; i-- {
		if w.scope[i].name == name {
			return w.scope[i], true
		}
	}
	return binding{}, false
}

// expr compiles e applied to in.
func (w *walker) expr(e language.Expr, in *ir.Node) (*ir.Node, error) {
	switch n := e.(type) {
	case *language.Atom:
		return w.atom(n, in)
	case *language.Sequential:
		left, err := w.expr(n.Left, in)
		if err != nil {
			return nil, err
		}
		return w.expr(n.Right, left)
	case *language.Parallel:
		return w.parallel(n, in)
	case *language.RightDiamond:
		return w.diamond(ir.Forward, n.Phi, n.Sigma, in)
	case *language.LeftDiamond:
		return w.diamond(ir.Backward, n.Phi, n.Sigma, in)
	case *language.Variable:
		return w.variable(n)
	case *language.FixPoint:
		return w.fixpoint(n, in)
	case nil:
		return nil, fmt.Errorf("compiler: nil expression")
	}
	return nil, fmt.Errorf("compiler: unsupported expression %T", e)
}

func (w *walker) atom(a *language.Atom, in *ir.Node) (*ir.Node, error) {
	op := a.OperatorKey()
	return w.intern(op+"("+in.Key+")", func() (*ir.Node, error) {
		psi, err := w.c.ops.Psi.Get(a.Name, argOf(a))
		if err != nil {
			return nil, err
		}
		return &ir.Node{
			Kind:   ir.KindPsi,
			Inputs: []*ir.Node{in},
			OpName: op,
			Psi:    psi,
			Width:  operator.OutputWidth(psi, in.Width),
			Free:   in.Free,
		}, nil
	})
}

func argOf(a *language.Atom) operator.Arg {
	if a.HasArg {
		return operator.SomeArg(a.Arg)
	}
	return operator.NoArg
}

func (w *walker) parallel(p *language.Parallel, in *ir.Node) (*ir.Node, error) {
	if len(p.Children) == 0 {
		return nil, &language.SyntaxError{Pos: p.Pos, Message: "empty parallel composition"}
	}
	children := make([]*ir.Node, len(p.Children))
	keys := make([]string, len(p.Children))
	width := 0
	for i, ch := range p.Children {
		n, err := w.expr(ch, in)
		if err != nil {
			return nil, err
		}
		children[i], keys[i] = n, n.Key
		if width == operator.Unknown || n.Width == operator.Unknown {
			width = operator.Unknown
		} else {
			width += n.Width
		}
	}
	return w.intern("concat("+strings.Join(keys, ",")+")", func() (*ir.Node, error) {
		return &ir.Node{
			Kind:   ir.KindConcat,
			Inputs: children,
			Width:  width,
			Free:   union(children...),
		}, nil
	})
}

func (w *walker) diamond(dir ir.Direction, phiKey, sigmaKey string, in *ir.Node) (*ir.Node, error) {
	var key string
	if dir == ir.Forward {
		key = "|" + phiKey + ">" + sigmaKey
	} else {
		key = "<" + phiKey + "|" + sigmaKey
	}
	if !w.c.cfg.Input.Adjacency {
		return nil, &operator.ModeMismatchError{
			Op:      key,
			Batched: w.c.cfg.Input.Batched,
			Reason:  "message passing requires adjacency in the compiler configuration",
		}
	}
	return w.intern(key+"("+in.Key+")", func() (*ir.Node, error) {
		sigma, err := w.c.ops.Sigma.Resolve(sigmaKey)
		if err != nil {
			return nil, err
		}
		msgWidth := in.Width
		var phi operator.Phi
		if phiKey != "" {
			if phi, err = w.c.ops.Phi.Resolve(phiKey); err != nil {
				return nil, err
			}
			msgWidth = operator.OutputWidth(phi, in.Width)
		}
		return &ir.Node{
			Kind:      ir.KindDiamond,
			Inputs:    []*ir.Node{in},
			OpName:    sigmaKey,
			Sigma:     sigma,
			PhiName:   phiKey,
			Phi:       phi,
			Direction: dir,
			Width:     operator.OutputWidth(sigma, msgWidth),
			Free:      in.Free,
		}, nil
	})
}

// variableKey names a bound variable by the nesting depth of its binder, so
// alpha-equivalent formulas share nodes and a shadowing binder never
// collides with the one it shadows.
func variableKey(depth int, base string) string { return "var:" + strconv.Itoa(depth) + ":" + base }

func (w *walker) variable(v *language.Variable) (*ir.Node, error) {
	b, ok := w.lookup(v.Name)
	if !ok {
		return nil, &UnboundVariableError{Name: v.Name, Pos: v.Pos}
	}
	return w.intern(b.key, func() (*ir.Node, error) {
		return &ir.Node{
			Kind:   ir.KindVariable,
			Binder: &ir.Binder{Name: v.Name, Var: b.key, Base: b.base, DType: b.fp.DType},
			Width:  b.fp.Width,
			Free:   []string{b.key},
		}, nil
	})
}

func (w *walker) fixpoint(f *language.FixPoint, in *ir.Node) (*ir.Node, error) {
	fp, ok := w.c.cfg.FixPoints[f.Base]
	if !ok {
		return nil, &operator.UnknownOperatorError{Role: "fixpoint", Name: f.Base}
	}
	initRow, err := fp.Init(f.Least)
	if err != nil {
		return nil, fmt.Errorf("fixpoint %s: %w", f.Base, err)
	}
	varKey := variableKey(len(w.scope), f.Base)

	w.scope = append(w.scope, binding{name: f.Var, base: f.Base, key: varKey, fp: fp})
	body, err := w.expr(f.Body, in)
	w.scope = w.scope[:len(w.scope)-1]
	if err != nil {
		return nil, err
	}
	if body.Width != operator.Unknown && body.Width != fp.Width {
		return nil, tensor.Shapef("fixpoint "+f.Var, "body has width %d, %s declares %d", body.Width, f.Base, fp.Width)
	}

	binder := "nu"
	if f.Least {
		binder = "mu"
	}
	return w.intern(binder+" "+varKey+".{"+body.Key+"}", func() (*ir.Node, error) {
		return &ir.Node{
			Kind:   ir.KindFixPoint,
			Inputs: []*ir.Node{in},
			Body:   body,
			Binder: &ir.Binder{
				Least: f.Least,
				Name:  f.Var,
				Var:   varKey,
				Base:  f.Base,
				Init:  initRow,
				DType: fp.DType,
			},
			Width: fp.Width,
			Free:  without(union(in, body), varKey),
		}, nil
	})
}

func union(ns ...*ir.Node) []string {
	set := make(map[string]struct{})
	for _, n := range ns {
		for _, v := range n.Free {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func without(vars []string, v string) []string {
	var out []string
	for _, x := range vars {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
