// Package cli 实现 snowflake 命令行：生成、解析 ID，查看节点号，启动 HTTP 服务。
package cli

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
}

// NewRootCommand 构造根命令
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "snowflake",
		Short:         "Snowflake 64-bit ID generator",
		Long:          "Generate and decode 64-bit snowflake ids (42-bit timestamp, 10-bit node id, 12-bit sequence).",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"config file path (default: ./snowflake.yaml or ./config/snowflake.yaml)")

	root.AddCommand(
		newNextCommand(flags),
		newDecodeCommand(flags),
		newNodeCommand(flags),
		newServeCommand(flags),
	)
	return root
}
