package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"go_analysis/internal/domain"
	"go_analysis/internal/domain/sgf"
	"go_analysis/internal/metrics"
	"go_analysis/internal/repository/katago"
	"go_analysis/internal/usecase"
)

func newAnnotateCommand(opts *rootOptions) *cobra.Command {
	var (
		output     string
		visits     int
		start, end int
	)
	cmd := &cobra.Command{
		Use:   "annotate <file>",
		Short: "Analyze a record with KataGo and write it back with winrate comments and variations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := sgf.ParseFile(args[0])
			if err != nil {
				return err
			}
			req := domain.AnalysisRequest{SGF: tree.SGF(), Visits: visits}
			if cmd.Flags().Changed("start") {
				req.StartTurn = &start
			}
			if cmd.Flags().Changed("end") {
				req.EndTurn = &end
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			uc := newUseCase(opts, metrics.New(prometheus.NewRegistry()))
			if err := uc.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = uc.Stop() }()

			annotated, err := uc.Analyze(ctx, req)
			if err != nil {
				return fmt.Errorf("annotate %s: %w", args[0], err)
			}
			return writeRecord(cmd.OutOrStdout(), output, annotated)
		},
	}
	cmd.Flags().StringVarP(&output, outputFlag, outputShort, "", outputUsage)
	cmd.Flags().IntVar(&visits, "visits", 0, "visits per position (0 means DEFAULT_ANALYSIS_STEPS)")
	cmd.Flags().IntVar(&start, "start", 0, "first turn to analyze")
	cmd.Flags().IntVar(&end, "end", 0, "last turn to analyze")
	return cmd
}

// newUseCase wires the KataGo adapter behind the analysis service.
func newUseCase(opts *rootOptions, m *metrics.Metrics) *usecase.AnalysisUseCase {
	cfg := opts.cfg
	factory := func() usecase.Engine {
		engine := katago.NewSyncEngine(katago.ConfigFrom(cfg), opts.log, m)
		return katago.NewAsyncEngine(engine, cfg.StreamBuffer, opts.log)
	}
	validator := sgf.NewValidator(cfg.MaxSgfBytes, cfg.MaxMoves, cfg.MaxVariations)
	return usecase.NewAnalysisUseCase(cfg, opts.log, m, factory, validator)
}
