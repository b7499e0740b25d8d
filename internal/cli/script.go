package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"RadNode/internal/radon"
)

// NewScriptCommand creates the script command group.
func NewScriptCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Compile, inspect and execute RADON scripts",
	}

	cmd.AddCommand(newScriptEncodeCommand(rootOpts))
	cmd.AddCommand(newScriptDecodeCommand(rootOpts))
	cmd.AddCommand(newScriptExecCommand(rootOpts))

	return cmd
}

// parseScriptArg compiles an inline notation script, or a file with @path.
func parseScriptArg(arg string) (radon.Script, error) {
	text := []byte(arg)

	if strings.HasPrefix(arg, "@") {
		data, err := readInput(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read script:\n%w", err)
		}
		text = data
	}

	var steps []any
	if err := yaml.Unmarshal(text, &steps); err != nil {
		return nil, fmt.Errorf("parse script notation:\n%w", err)
	}

	return radon.ParseNotation(steps)
}

// newScriptEncodeCommand creates the script encode command.
func newScriptEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <notation|@file>",
		Short: "Compile a notation script to hex CBOR",
		Example: `  rad script encode '["StringParseJSONMap", ["MapGetFloat", "price"]]'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := parseScriptArg(args[0])
			if err != nil {
				return err
			}

			data, err := script.Encode()
			if err != nil {
				return err
			}

			encoded := hex.EncodeToString(data)

			return newOutput(rootOpts, cmd.OutOrStdout()).emit(map[string]string{
				"script": script.String(),
				"cbor":   encoded,
			}, func(w io.Writer) {
				line(w, "%s", encoded)
			})
		},
	}
}

// newScriptDecodeCommand creates the script decode command.
func newScriptDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decode <hex>",
		Short:         "Render a hex CBOR script in notation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
			if err != nil {
				return fmt.Errorf("decode hex:\n%w", err)
			}

			script, err := radon.DecodeScript(data)
			if err != nil {
				return err
			}

			return newOutput(rootOpts, cmd.OutOrStdout()).emit(map[string]any{
				"script": script.String(),
				"calls":  len(script),
			}, func(w io.Writer) {
				line(w, "%s", script.String())
			})
		},
	}
}

// newScriptExecCommand creates the script exec command.
func newScriptExecCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		input    string
		partials bool
		gas      uint64
	)

	cmd := &cobra.Command{
		Use:   "exec <notation|@file>",
		Short: "Execute a script over a string input",
		Example: `  rad script exec '["StringParseJSONMap", ["MapGetFloat", "price"]]' --input '{"price": 12.5}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := parseScriptArg(args[0])
			if err != nil {
				return err
			}

			settings := radon.Settings{Timing: true, PartialResults: partials, GasLimit: gas}
			report := radon.Execute(radon.String(input), script, radon.StageRetrieval, settings)

			steps := make([]string, len(report.Context.PartialResults))
			for i, v := range report.Context.PartialResults {
				steps[i] = v.String()
			}

			return newOutput(rootOpts, cmd.OutOrStdout()).emit(map[string]any{
				"report":   newReportResult(report),
				"partials": steps,
				"gasUsed":  report.Context.GasUsed,
			}, func(w io.Writer) {
				for i, s := range steps {
					line(w, "step %d  %s", i, s)
				}
				line(w, "result  %s", report.String())
				line(w, "gas     %d", report.Context.GasUsed)
			})
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "input string")
	cmd.Flags().BoolVar(&partials, "partial", false, "print the value after every step")
	cmd.Flags().Uint64Var(&gas, "gas", radon.DefaultGasLimit, "gas limit")

	return cmd
}
