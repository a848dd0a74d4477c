package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanpama/mgc/internal/compiler"
	"github.com/hanpama/mgc/internal/config"
	"github.com/hanpama/mgc/internal/executor"
	"github.com/hanpama/mgc/internal/ir"
	"github.com/hanpama/mgc/internal/operator"
	"github.com/hanpama/mgc/internal/tensor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath    string
	logLevel      string
	maxIterations int
}

func newRootCommand() *cobra.Command {
	var flags globalFlags
	cmd := &cobra.Command{
		Use:   "mgc",
		Short: "Compile and evaluate modal mu-calculus formulas over graphs",
		Long: `mgc compiles formulas of the modal mu-calculus into shared computation
graphs and evaluates them over labelled graphs.

Without --config, node labels are single uint8 columns, adjacency is
available and the boolean fixpoint base "b" is declared.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "HCL configuration file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().IntVar(&flags.maxIterations, "max-iterations", 0, "Fixpoint iteration limit (0 derives it from the input)")

	cmd.AddCommand(
		newCompileCommand(&flags),
		newEvalCommand(&flags),
		newServeCommand(&flags),
	)
	return cmd
}

// env holds what every subcommand builds from the global flags.
type env struct {
	logger *zap.Logger
	cfg    compiler.Config
	comp   *compiler.Compiler
	exec   *executor.Executor
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func defaultConfig() compiler.Config {
	return compiler.XAConfig(ir.LabelSpec{DType: tensor.Uint8, Width: 1}).
		WithFixPoint("b", compiler.BoolFixPoint(1))
}

func (f *globalFlags) load() (*env, error) {
	logger, err := newLogger(f.logLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	cfg := defaultConfig()
	ops := operator.Defaults()
	if f.configPath != "" {
		file, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		if ops, err = file.Registries(); err != nil {
			return nil, fmt.Errorf("config %s: %w", f.configPath, err)
		}
		cfg = file.Compiler
	}
	if f.maxIterations > 0 {
		cfg.MaxIterations = f.maxIterations
	}

	comp, err := compiler.New(ops, cfg, compiler.WithLogger(logger.Named("compiler")))
	if err != nil {
		return nil, err
	}
	exec := executor.New(
		executor.WithLogger(logger.Named("executor")),
		executor.WithMaxIterations(cfg.MaxIterations),
	)
	return &env{logger: logger, cfg: cfg, comp: comp, exec: exec}, nil
}
