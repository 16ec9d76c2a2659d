package main

import (
	"fmt"

	"github.com/danmuck/plcbridge/internal/config"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage config files",
	}
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var (
		kind  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config file",
		Long: `Write a starter config file.

Kinds:
  bridge    client pointed at a PLC, processing server, big-endian layout
  loopback  client and echo server on localhost for bench testing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "plcbridge.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", kindName(kind), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "bridge", "Template kind (bridge, loopback)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func kindName(kind string) string {
	if kind == "" {
		return "bridge"
	}
	return kind
}
