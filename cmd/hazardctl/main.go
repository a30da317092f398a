package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hazard-predict/internal/observability"
	"github.com/spf13/cobra"
)

const (
	exitOK       = 0
	exitFailed   = 1
	exitRejected = 2
)

// exitError carries the process exit status for a command failure. An empty
// message means the command already reported the problem.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// env is the process surface a command runs against.
type env struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	newMetrics func() *observability.Metrics
}

func main() {
	e := &env{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		newMetrics: observability.NewMetrics,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := e.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (e *env) run(ctx context.Context, args []string) int {
	root := e.newRootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(e.stderr, ee.msg)
		}
		return ee.code
	}
	fmt.Fprintln(e.stderr, "Error:", err)
	return exitFailed
}

func (e *env) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hazardctl",
		Short: "Submit sensor matrices to the hazard prediction service",
		Long: `hazardctl validates cyclone and earthquake input matrices locally and
sends them to the prediction service configured by PREDICT_BASE_URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(e.stdin)
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)

	root.AddCommand(
		e.newPredictCmd(),
		e.newFormCmd(),
		e.newHazardsCmd(),
	)
	return root
}
