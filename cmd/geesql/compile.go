package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/namedsql"
)

func newCompileCmd() *cobra.Command {
	var (
		dialectName string
		in          []string
	)
	cmd := &cobra.Command{
		Use:   "compile <sql>",
		Short: "Print the positional SQL and parameter order for named SQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := dialect.GetDialect(dialectName)
			if !ok {
				return errors.Errorf("unknown dialect %q (known: %s)", dialectName, strings.Join(dialect.Names(), ", "))
			}
			sizes := make(map[string]int, len(in))
			for _, kv := range in {
				name, value, err := splitPair(kv)
				if err != nil {
					return err
				}
				n, err := cast.ToIntE(value)
				if err != nil || n < 0 {
					return errors.Errorf("--in %s: size must be a non-negative integer", kv)
				}
				sizes[name] = n
			}
			q, err := namedsql.Compile(d, args[0], sizes)
			if err != nil {
				return err
			}
			names, err := namedsql.Names(d, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, q.SQL)
			fmt.Fprintf(out, "params: %s\n", strings.Join(q.Params, ", "))
			fmt.Fprintf(out, "names: %s\n", strings.Join(names, ", "))
			fmt.Fprintf(out, "placeholders: %d\n", q.Count())
			return nil
		},
	}
	cmd.Flags().StringVar(&dialectName, "dialect", "sqlite3", "dialect to compile for")
	cmd.Flags().StringArrayVar(&in, "in", nil, "expand :name as an IN list of the given size, name=size (repeatable)")
	return cmd
}
