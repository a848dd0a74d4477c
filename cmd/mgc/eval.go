package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hanpama/mgc/internal/executor"
	"github.com/hanpama/mgc/internal/graph"
	"github.com/hanpama/mgc/internal/tensor"
)

type evalFlags struct {
	graphs string
	format string
	repeat int
}

type evalOutput struct {
	Formula string         `json:"formula"`
	DType   tensor.DType   `json:"dtype"`
	Labels  *tensor.Tensor `json:"labels"`
	Index   []int          `json:"index,omitempty"`
}

func newEvalCommand(flags *globalFlags) *cobra.Command {
	var ef evalFlags
	cmd := &cobra.Command{
		Use:   "eval FORMULA",
		Short: "Evaluate a formula over graphs",
		Long: `Evaluates a formula over the graphs of a JSON document:

  {"x": [[1],[2]], "edges": [[0,1]], "e": [[0]]}

or an array of them when the configuration is batched. Use --graphs - to
read the document from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ef.format != "json" && ef.format != "proto" {
				return fmt.Errorf("unknown format %q", ef.format)
			}
			if ef.repeat < 1 {
				return fmt.Errorf("repeat must be positive, got %d", ef.repeat)
			}
			e, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			gs, err := readGraphs(cmd, ef.graphs, e)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			m, err := e.comp.Compile(ctx, args[0])
			if err != nil {
				return err
			}
			in, err := executor.Prepare(e.cfg.Input, gs...)
			if err != nil {
				return err
			}

			var out *tensor.Tensor
			start := time.Now()
			for i := 0; i < ef.repeat; i++ {
				if out, err = e.exec.Evaluate(ctx, m, in); err != nil {
					return err
				}
			}
			elapsed := time.Since(start)
			e.logger.Info("evaluated",
				zap.String("formula", m.Formula),
				zap.Int("repeat", ef.repeat),
				zap.Duration("elapsed", elapsed),
			)
			if ef.repeat > 1 {
				fmt.Fprintf(cmd.ErrOrStderr(), "evaluated %d times in %s (%s/op)\n",
					ef.repeat, elapsed, elapsed/time.Duration(ef.repeat))
			}

			w := cmd.OutOrStdout()
			if ef.format == "proto" {
				_, err := w.Write(out.MarshalProto())
				return err
			}
			enc := json.NewEncoder(w)
			return enc.Encode(evalOutput{Formula: m.Formula, DType: out.DType(), Labels: out, Index: in.Index})
		},
	}
	cmd.Flags().StringVar(&ef.graphs, "graphs", "", "Graph JSON file, or - for standard input")
	cmd.Flags().StringVar(&ef.format, "format", "json", "Output format: json or proto")
	cmd.Flags().IntVar(&ef.repeat, "repeat", 1, "Evaluate N times and report the elapsed time")
	_ = cmd.MarkFlagRequired("graphs")
	return cmd
}

func readGraphs(cmd *cobra.Command, path string, e *env) ([]*graph.Graph, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	spec := e.cfg.Input
	edgeType := spec.Node.DType
	if spec.Edge != nil {
		edgeType = spec.Edge.DType
	}
	gs, err := graph.Decode(r, spec.Node.DType, edgeType)
	if err != nil {
		return nil, fmt.Errorf("graphs %s: %w", path, err)
	}
	return gs, nil
}
