package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"go_analysis/internal/domain/sgf"
)

func newConvertCommand(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert an NGF, GIB or SGF file to SGF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := sgf.ParseFile(args[0])
			if err != nil {
				return err
			}
			opts.log.Debugw("record converted", "file", args[0], "moves", len(tree.MainLine())-1)
			return writeRecord(cmd.OutOrStdout(), output, tree.SGF())
		},
	}
	cmd.Flags().StringVarP(&output, outputFlag, outputShort, "", outputUsage)
	return cmd
}

func writeRecord(stdout io.Writer, path, record string) error {
	if path == "" {
		_, err := fmt.Fprintln(stdout, record)
		return err
	}
	if err := os.WriteFile(path, []byte(record+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
