package operator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hanpama/mgc/internal/tensor"
)

func truth(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// Bit returns a psi that tests bit k of every label, yielding booleans.
func Bit(k int) Psi {
	mask := int64(1) << uint(k)
	return NewLocal(SameWidth, func(x *tensor.Tensor) *tensor.Tensor {
		return x.Map(tensor.Bool, func(v float64) float64 { return truth(int64(v)&mask != 0) })
	})
}

func bitConstructor(arg Arg) (Psi, error) {
	if !arg.Valid {
		return nil, fmt.Errorf("missing bit position")
	}
	k, err := strconv.Atoi(strings.TrimSpace(arg.Value))
	if err != nil || k < 0 || k > 62 {
		return nil, fmt.Errorf("invalid bit position %q", arg.Value)
	}
	return Bit(k), nil
}

func constant(width int, dt tensor.DType, v float64) Psi {
	row := make([]float64, width)
	for i := range row {
		row[i] = v
	}
	return NewLocal(FixedWidth(width), func(x *tensor.Tensor) *tensor.Tensor {
		return tensor.Full(x.Rows(), row, dt)
	})
}

// constConstructor accepts true, false or a number.
func constConstructor(arg Arg) (Psi, error) {
	if !arg.Valid {
		return nil, fmt.Errorf("missing constant value")
	}
	switch s := strings.ToLower(strings.TrimSpace(arg.Value)); s {
	case "true":
		return constant(1, tensor.Bool, 1), nil
	case "false":
		return constant(1, tensor.Bool, 0), nil
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid constant %q", arg.Value)
		}
		return constant(1, tensor.Float64, v), nil
	}
}

// difference subtracts each column after the first from the first one:
// out[:, j] = x[:, 0] - x[:, j+1].
func difference(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Cols() < 2 {
		return nil, tensor.Shapef("min", "need at least 2 features, got %d", x.Cols())
	}
	out, err := tensor.New(x.Rows(), x.Cols()-1, x.DType())
	if err != nil {
		return nil, err
	}
	for i := 0; i < x.Rows(); i++ {
		row := x.Row(i)
		for j := 1; j < len(row); j++ {
			out.Set(i, j-1, row[0]-row[j])
		}
	}
	return out, nil
}

func differenceWidth(in int) int {
	if in < 2 {
		return Unknown
	}
	return in - 1
}

// poolAll folds all rows of x into one row.
func poolAll(x *tensor.Tensor, init float64, f func(acc, v float64) float64) *tensor.Tensor {
	out, _ := tensor.New(1, x.Cols(), x.DType())
	if x.Rows() == 0 {
		return out
	}
	for j := 0; j < x.Cols(); j++ {
		acc := init
		for i := 0; i < x.Rows(); i++ {
			acc = f(acc, x.At(i, j))
		}
		out.Set(0, j, acc)
	}
	return out
}

func add(acc, v float64) float64 { return acc + v }

// Pool returns a global psi that folds each graph's labels with f and
// broadcasts the pooled row to all of the graph's nodes.
func Pool(name string, init float64, f func(acc, v float64) float64) *Global {
	return &Global{
		Name:     name,
		SingleOp: func(x *tensor.Tensor) (*tensor.Tensor, error) { return poolAll(x, init, f), nil },
		MultipleOp: func(x *tensor.Tensor, index []int) (*tensor.Tensor, error) {
			return x.SegmentReduce(index, x.DType(), init, f)
		},
		Out: SameWidth,
	}
}

// DefaultPsi returns a registry with the builtin node-wise operators.
func DefaultPsi() *Registry[Psi] {
	r := NewRegistry[Psi]("psi")
	r.RegisterConstructor("bit", bitConstructor)
	r.RegisterConstructor("const", constConstructor)
	r.Register("a", Bit(0))
	r.Register("b", Bit(1))
	r.Register("c", Bit(2))
	r.Register("true", constant(1, tensor.Bool, 1))
	r.Register("false", constant(1, tensor.Bool, 0))
	r.Register("and", NewLocal(FixedWidth(1), func(x *tensor.Tensor) *tensor.Tensor {
		return x.ReduceRows(tensor.Bool, func(row []float64) float64 {
			for _, v := range row {
				if v == 0 {
					return 0
				}
			}
			return 1
		})
	}))
	r.Register("or", NewLocal(FixedWidth(1), func(x *tensor.Tensor) *tensor.Tensor {
		return x.ReduceRows(tensor.Bool, func(row []float64) float64 {
			for _, v := range row {
				if v != 0 {
					return 1
				}
			}
			return 0
		})
	}))
	r.Register("not", NewLocal(SameWidth, func(x *tensor.Tensor) *tensor.Tensor {
		return x.Map(tensor.Bool, func(v float64) float64 { return truth(v == 0) })
	}))
	r.Register("id", NewLocal(SameWidth, func(x *tensor.Tensor) *tensor.Tensor { return x }))
	r.Register("one", NewLocal(SameWidth, func(x *tensor.Tensor) *tensor.Tensor {
		return x.Map(x.DType(), func(float64) float64 { return 1 })
	}))
	sub := &Local{F: difference, Out: differenceWidth}
	r.Register("min", sub)
	r.Register("sub", sub)
	r.Register("gsum", Pool("gsum", 0, add))
	r.Register("gmax", Pool("gmax", math.Inf(-1), math.Max))
	return r
}

// aggregate builds a sigma over ScatterReduce. A nil dt keeps the message
// dtype.
func aggregate(dt *tensor.DType, init, empty float64, f func(acc, v float64) float64) Sigma {
	return NewSigma(SameWidth, func(m *tensor.Tensor, target []int, n int, _ *tensor.Tensor) (*tensor.Tensor, error) {
		out := m.DType()
		if dt != nil {
			out = *dt
		}
		return m.ScatterReduce(target, n, out, init, empty, f)
	})
}

func anyTrue(acc, v float64) float64 {
	if v != 0 {
		return 1
	}
	return acc
}

func allTrue(acc, v float64) float64 {
	if v == 0 {
		return 0
	}
	return acc
}

// DefaultSigma returns a registry with the builtin aggregations. Nodes
// without messages receive false (0), except for and, which yields true.
func DefaultSigma() *Registry[Sigma] {
	boolean := tensor.Bool
	r := NewRegistry[Sigma]("sigma")
	or := aggregate(&boolean, 0, 0, anyTrue)
	r.Register("or", or)
	r.Register("uor", or)
	r.Register("and", aggregate(&boolean, 1, 1, allTrue))
	r.Register("sum", aggregate(nil, 0, 0, add))
	r.Register("max", aggregate(nil, math.Inf(-1), 0, math.Max))
	r.Register("min", aggregate(nil, math.Inf(1), 0, math.Min))
	return r
}

// isZero keeps a target label where the edge label is 0. Edge labels of
// width 1 apply to every feature.
func isZero(src, e, tgt *tensor.Tensor) (*tensor.Tensor, error) {
	if e == nil {
		return nil, tensor.Shapef("z", "edge labels required")
	}
	if e.Cols() != 1 && e.Cols() != tgt.Cols() {
		return nil, tensor.Shapef("z", "edge width %d does not match label width %d", e.Cols(), tgt.Cols())
	}
	out, err := tensor.New(tgt.Rows(), tgt.Cols(), tensor.Bool)
	if err != nil {
		return nil, err
	}
	for i := 0; i < tgt.Rows(); i++ {
		for j := 0; j < tgt.Cols(); j++ {
			ej := 0
			if e.Cols() > 1 {
				ej = j
			}
			out.Set(i, j, truth(tgt.At(i, j) != 0 && e.At(i, ej) == 0))
		}
	}
	return out, nil
}

// DefaultPhi returns a registry with the builtin message functions.
func DefaultPhi() *Registry[Phi] {
	r := NewRegistry[Phi]("phi")
	r.Register("z", NewPhi(SameWidth, isZero))
	r.Register("src", NewPhi(SameWidth, func(src, _, _ *tensor.Tensor) (*tensor.Tensor, error) { return src, nil }))
	r.Register("tgt", NewPhi(SameWidth, func(_, _, tgt *tensor.Tensor) (*tensor.Tensor, error) { return tgt, nil }))
	r.Register("edge", PhiFunc(func(_, e, _ *tensor.Tensor) (*tensor.Tensor, error) {
		if e == nil {
			return nil, tensor.Shapef("edge", "edge labels required")
		}
		return e, nil
	}))
	return r
}
