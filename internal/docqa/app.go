package docqa

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName        = "docqa-server"
	appDescription = `Document QA Service

A retrieval-augmented question answering backend for user documents.

This server provides:
  - PDF and plain text ingestion with chunking and vector indexing
  - Cooperative cancellation of in-flight ingestion
  - Context-grounded question answering with confidence scoring
  - Streaming answers over SSE
  - Per-document chat history with archive paging`
)

// NewApp creates the root command for the document QA server.
func NewApp() *cobra.Command {
	opts := NewOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Document QA service",
		Long:          appDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(configFile, cmd, opts); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return Run(setupSignalContext(), opts)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file.")
	opts.AddFlags(cmd.Flags())
	return cmd
}

// loadConfig 读取配置文件并与命令行参数合并，命令行优先。
func loadConfig(configFile string, cmd *cobra.Command, opts *Options) error {
	v := viper.New()
	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal forces immediate exit.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
