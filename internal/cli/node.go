package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNodeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "node",
		Short: "Print the machine identity and the node id derived from it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			method := cfg.Snowflake.Method
			if cfg.Allocator.Enabled {
				method = "allocator:" + cfg.Allocator.Driver
			}
			identity := gen.Identity()
			if identity == "" {
				identity = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "method=%s\tidentity=%s\tnode_id=%d\n", method, identity, gen.NodeID())
			return nil
		},
	}
}
