package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/snowflake/idgen"
)

type decodedID struct {
	ID        idgen.ID  `json:"id"`
	Timestamp int64     `json:"timestamp"`
	NodeID    int64     `json:"node_id"`
	Sequence  int64     `json:"sequence"`
	Time      time.Time `json:"time"`
}

func newDecodeCommand(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "decode <id>...",
		Short: "Decode ids into timestamp, node id and sequence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd.Context(), flags.configPath)
			if err != nil {
				return err
			}
			epoch := cfg.Snowflake.Epoch
			if epoch == 0 {
				epoch = idgen.DefaultEpoch
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for _, arg := range args {
				id, err := idgen.ParseID(arg)
				if err != nil {
					return err
				}
				p := idgen.DefaultLayout.Decode(id)
				d := decodedID{
					ID:        id,
					Timestamp: p.Timestamp,
					NodeID:    p.NodeID,
					Sequence:  p.Sequence,
					Time:      time.UnixMilli(epoch + p.Timestamp).UTC(),
				}

				if asJSON {
					if err := enc.Encode(d); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s\ttimestamp=%d\tnode_id=%d\tsequence=%d\ttime=%s\n",
					d.ID, d.Timestamp, d.NodeID, d.Sequence, d.Time.Format(time.RFC3339Nano))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per id")
	return cmd
}
