package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/bxshcn/geesql/session"
)

func newQueryCmd(root *rootOptions) *cobra.Command {
	var (
		params        paramFlags
		limit, offset int64
	)
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := params.params()
			if err != nil {
				return err
			}
			e, err := root.engine()
			if err != nil {
				return err
			}
			defer e.Close()
			s := e.NewSession()
			defer s.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			header := false
			return s.ForEach(cmd.Context(), args[0], values, &session.StatementOptions{Limit: limit, Offset: offset}, func(r *session.Row) error {
				if !header {
					fmt.Fprintln(w, strings.Join(r.Columns(), "\t"))
					header = true
				}
				cells := make([]string, r.Len())
				for i := range cells {
					if v := r.Value(i); v == nil {
						cells[i] = "NULL"
					} else {
						cells[i] = cast.ToString(v)
					}
				}
				_, err := fmt.Fprintln(w, strings.Join(cells, "\t"))
				return err
			})
		},
	}
	params.register(cmd)
	cmd.Flags().Int64Var(&limit, "limit", 0, "return at most this many rows")
	cmd.Flags().Int64Var(&offset, "offset", 0, "skip this many rows")
	return cmd
}

func newExecCmd(root *rootOptions) *cobra.Command {
	var params paramFlags
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run an update and print the affected row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := params.params()
			if err != nil {
				return err
			}
			e, err := root.engine()
			if err != nil {
				return err
			}
			defer e.Close()
			s := e.NewSession()
			defer s.Close()

			n, err := s.Update(cmd.Context(), args[0], values, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", n)
			return nil
		},
	}
	params.register(cmd)
	return cmd
}
