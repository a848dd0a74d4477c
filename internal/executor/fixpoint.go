package executor

import (
	"time"

	"go.uber.org/zap"

	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/ir"
	"github.com/hanpama/mgc/internal/tensor"
)

type fixState int

const (
	fixInit fixState = iota
	fixIterating
	fixConverged
)

// fixpointRun is the explicit state of one fixpoint evaluation.
type fixpointRun struct {
	node       *ir.Node
	state      fixState
	current    *tensor.Tensor
	iterations int
	limit      int
}

func (s *evalState) iterationLimit(width int) int {
	if s.exec.maxIterations > 0 {
		return s.exec.maxIterations
	}
	return max(DefaultMinIterations, s.nodes*width+1)
}

func (s *evalState) fixpoint(n *ir.Node, f *frame) (*tensor.Tensor, error) {
	b := n.Binder
	run := &fixpointRun{node: n, state: fixInit, limit: s.iterationLimit(len(b.Init))}
	start := time.Now()
	for run.state != fixConverged {
		switch run.state {
		case fixInit:
			run.current = tensor.Full(s.nodes, b.Init, b.DType)
			run.state = fixIterating

		case fixIterating:
			if err := s.ctx.Err(); err != nil {
				return nil, err
			}
			if run.iterations >= run.limit {
				s.logger.Warn("fixpoint did not converge",
					zap.String("key", n.Key),
					zap.Int("iterations", run.iterations),
				)
				return nil, &NonTerminationError{Key: n.Key, Iterations: run.iterations}
			}
			next, err := s.eval(n.Body, newFrame(f, b.Var, run.current))
			if err != nil {
				return nil, err
			}
			run.iterations++
			if next.Rows() != s.nodes || next.Cols() != len(b.Init) {
				return nil, tensor.Shapef("fixpoint "+b.Name, "body produced %dx%d labels, %s declares %dx%d",
					next.Rows(), next.Cols(), b.Base, s.nodes, len(b.Init))
			}
			if next.Equal(run.current) {
				run.state = fixConverged
			} else {
				run.current = next
			}
		}
	}

	elapsed := time.Since(start)
	s.logger.Debug("fixpoint converged",
		zap.String("key", n.Key),
		zap.Bool("least", b.Least),
		zap.Int("iterations", run.iterations),
		zap.Duration("elapsed", elapsed),
	)
	eventbus.Publish(s.ctx, events.FixpointConverged{
		Key:        n.Key,
		Least:      b.Least,
		Iterations: run.iterations,
		Duration:   elapsed,
	})
	return run.current, nil
}
