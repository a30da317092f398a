package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/hazard-predict/internal/controller"
	"github.com/couchcryptid/hazard-predict/internal/domain"
	"github.com/spf13/cobra"
)

type predictOptions struct {
	hazard string
	input  string
	file   string
	json   bool
}

// predictOutput is the --json rendering of one attempt.
type predictOutput struct {
	Hazard      domain.HazardType `json:"hazard"`
	Outcome     string            `json:"outcome"`
	Probability *float64          `json:"probability,omitempty"`
	Message     string            `json:"message,omitempty"`
	StatusCode  int               `json:"status_code,omitempty"`
	Display     string            `json:"display"`
	StatusLine  string            `json:"status_line"`
}

func (e *env) newPredictCmd() *cobra.Command {
	var opts predictOptions

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Validate one input matrix and request a prediction",
		Long: `Reads a JSON matrix from --input, --file or stdin, validates it against the
selected hazard and prints the prediction status line.

Exit status is 0 on a successful prediction, 1 when the prediction failed
and 2 when the input was rejected before any request was sent.`,
		Example: `  hazardctl predict --hazard cyclone --input '[0.6,0.4,0.3,0.2,0.1,0.0]'
  hazardctl predict -H earthquake -f window.json
  cat window.json | hazardctl predict -H earthquake --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.runPredict(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.hazard, "hazard", "H", "", "hazard type (default: first table entry)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input matrix as JSON")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read the input matrix from a file, - for stdin")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("input", "file")
	return cmd
}

func (e *env) runPredict(cmd *cobra.Command, opts predictOptions) error {
	text, err := e.readInput(opts)
	if err != nil {
		return &exitError{code: exitRejected, msg: err.Error()}
	}

	a, err := e.newApp(e.stderr, opts.hazard)
	if err != nil {
		return err
	}
	defer a.close()

	a.ctrl.SetInput(text)
	result, err := a.ctrl.Predict(cmd.Context())
	if err != nil {
		if errors.Is(err, controller.ErrMalformedInput) || isShapeError(err) {
			return &exitError{code: exitRejected, msg: a.ctrl.View().StatusLine()}
		}
		return err
	}

	v := a.ctrl.View()
	if opts.json {
		if err := writeJSON(cmd.OutOrStdout(), v, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), result.StatusLine())
	}

	if result.Kind != domain.ResultSuccess {
		return &exitError{code: exitFailed}
	}
	return nil
}

func (e *env) readInput(opts predictOptions) (string, error) {
	switch {
	case opts.input != "":
		return opts.input, nil
	case opts.file != "" && opts.file != "-":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(e.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
}

func isShapeError(err error) bool {
	var se *domain.ShapeError
	return errors.As(err, &se)
}

func writeJSON(w io.Writer, v controller.View, r domain.PredictionResult) error {
	out := predictOutput{
		Hazard:     v.Hazard,
		Outcome:    r.Outcome(),
		Message:    r.Message,
		StatusCode: r.StatusCode,
		Display:    v.Display.String(),
		StatusLine: r.StatusLine(),
	}
	if r.Kind == domain.ResultSuccess {
		p := r.Probability
		out.Probability = &p
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
