package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/danmuck/plcbridge/internal/config"
	"github.com/danmuck/plcbridge/internal/protocol/frame"
	"github.com/danmuck/plcbridge/internal/protocol/schema"
	"github.com/spf13/cobra"
)

func schemaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the record layout from the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := config.BuildSchema(cfg.Schema)
			if err != nil {
				return err
			}
			return printSchema(cmd.OutOrStdout(), s)
		},
	}
}

// printSchema writes one row per field with its offset, width and default.
func printSchema(w io.Writer, s *schema.Schema) error {
	defaults := frame.New(s)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "FIELD\tTYPE\tOFFSET\tSIZE\tDEFAULT\n")
	for _, f := range s.Fields() {
		v, err := defaults.Get(f.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", f.Name, f.Type, f.Offset, f.Width, v)
	}
	fmt.Fprintf(tw, "\nrecord size %d bytes, %s byte order\n", s.Size(), s.ByteOrder())
	return tw.Flush()
}
