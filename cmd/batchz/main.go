package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zoobzio/batchz"
)

var (
	version = "0.1.0"

	configPath string
	jsonLogs   bool

	rootCmd = &cobra.Command{
		Use:   "batchz",
		Short: "Typed batch processing from a configuration file",
		Long: `batchz builds processors, streams and pipelines from a configuration
file, routes each declared input to its owner through a dispatcher and
prints one summary line per owner.

Configuration is read from YAML, TOML or JSON. Any setting may be
overridden with a BATCHZ_ environment variable, e.g.
BATCHZ_DISPATCHER_CAPACITY=10.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "emit JSON logs")

	filterCmd.Flags().String("stream", "", "stream to filter (required)")
	filterCmd.Flags().String("criterion", "", "filter criterion (required)")
	_ = filterCmd.MarkFlagRequired("stream")
	_ = filterCmd.MarkFlagRequired("criterion")

	describeCmd.Flags().String("format", "json", "output format: json or yaml")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(describeCmd)
}

// setup loads the configuration and the logger shared by every command.
func setup(cmd *cobra.Command) (*Config, *zap.Logger, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if jsonLogs {
		cfg.Log.JSON = true
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.JSON, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch every configured input",
	Long: `Build every configured component, dispatch each input to its owner and
print the summary lines, then run the configured filters and chain.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		detach := bridgeSignals(logger)
		defer detach()

		return execute(contextOf(cmd), cfg, cmd.OutOrStdout(), logger)
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Select items from a configured stream's batch",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		stream, _ := cmd.Flags().GetString("stream")
		criterion, _ := cmd.Flags().GetString("criterion")
		fc := FilterConfig{Stream: stream, Criterion: criterion}
		if _, ok := cfg.StreamByID(stream); !ok {
			return errors.WithHint(
				errors.Newf("unknown stream %q", stream),
				"the stream must be declared under streams in the configuration",
			)
		}

		rt, err := build(cfg, batchz.Discard)
		if err != nil {
			return err
		}
		defer rt.close()
		return runFilter(contextOf(cmd), rt, cfg, fc, cmd.OutOrStdout())
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the structure of the configured components",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		format, _ := cmd.Flags().GetString("format")
		rt, err := build(cfg, batchz.Discard)
		if err != nil {
			return err
		}
		defer rt.close()

		root := rt.dispatcher.Schema()
		if chain := rt.chain(cfg); chain != nil {
			root = batchz.Node{
				Identity: batchz.NewIdentity("batchz", "Configured components"),
				Type:     batchz.NodeTypeChain,
				Flow:     batchz.ChainFlow{Links: []batchz.Node{root, chain.Schema()}},
			}
		}
		return writeSchema(cmd.OutOrStdout(), batchz.NewSchema(root), format)
	},
}

// writeSchema renders schema as indented JSON or as YAML.
func writeSchema(w io.Writer, schema batchz.Schema, format string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode schema")
	}

	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return errors.Wrap(err, "failed to decode schema")
		}
		out, err := yaml.Marshal(tree)
		if err != nil {
			return errors.Wrap(err, "failed to encode schema as yaml")
		}
		_, err = w.Write(out)
		return err
	default:
		return errors.WithHint(
			errors.Newf("unknown format %q", format),
			"use --format json or --format yaml",
		)
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
