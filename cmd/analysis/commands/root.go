package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_analysis/internal/bootstrap"
)

const (
	configFlag      = "config"
	configFlagUsage = "optional .env/yaml configuration file; environment variables override it"
	logLevelFlag    = "log-level"
	outputFlag      = "output"
	outputShort     = "o"
	outputUsage     = "write the record to this file instead of stdout"
)

type rootOptions struct {
	configPath string
	logLevel   string

	cfg *bootstrap.Config
	log *zap.SugaredLogger
}

// load reads the configuration and builds the logger; each subcommand calls it first.
func (o *rootOptions) load() error {
	cfg, err := bootstrap.Setup(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	o.cfg = cfg
	o.log = bootstrap.NewLogger(cfg.LogLevel)
	return nil
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "analysis",
		Short: "KataGo game record analysis service",
		Long: `Analyzes Go game records (SGF, NGF, GIB) with a KataGo analysis engine.

Commands:
  serve     HTTP and gRPC service with streaming analysis
  annotate  analyze one record file and print it annotated
  convert   convert NGF/GIB/SGF files to SGF without the engine`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, configFlag, ".env", configFlagUsage)
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, logLevelFlag, "", "override LOG_LEVEL")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newAnnotateCommand(opts))
	rootCmd.AddCommand(newConvertCommand(opts))
	return rootCmd
}
