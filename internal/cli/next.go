package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceyewan/snowflake/idgen"
	"github.com/ceyewan/snowflake/xerrors"
)

func newNextCommand(flags *rootFlags) *cobra.Command {
	var (
		count  int
		number bool
	)

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Generate ids, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return xerrors.WithCode(xerrors.Wrapf(idgen.ErrInvalidInput, "count must be positive, got %d", count), "invalid_count")
			}

			ctx := cmd.Context()
			cfg, _, err := loadConfig(ctx, flags.configPath)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg, false)
			if err != nil {
				return err
			}
			defer rt.close()

			gen, err := rt.generator(ctx)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			defer w.Flush()

			for remaining := count; remaining > 0; {
				n := min(remaining, idgen.MaxBatchSize)
				ids, err := gen.NextBatch(n)
				if err != nil {
					return err
				}
				for _, id := range ids {
					if number {
						fmt.Fprintln(w, uint64(id))
					} else {
						fmt.Fprintln(w, id.String())
					}
				}
				remaining -= n
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of ids to generate")
	cmd.Flags().BoolVar(&number, "number", false, "print ids as bare numbers")
	return cmd
}
