// Command geesql compiles named SQL and runs it against a configured
// database.
package main

import (
	"fmt"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bxshcn/geesql"
	"github.com/bxshcn/geesql/config"
)

var Version = "dev"

type rootOptions struct {
	configFile string
	envFiles   []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "geesql",
		Short:         "Compile and run named SQL",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./geesql.{yaml,toml,json})")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, ".env files to load (default ./.env if present)")

	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newExecCmd(opts))
	return cmd
}

func (o *rootOptions) engine() (*geesql.Engine, error) {
	cfg, err := config.Load(config.Options{File: o.configFile, EnvFiles: o.envFiles})
	if err != nil {
		return nil, err
	}
	return geesql.NewEngineFromConfig(cfg)
}

// paramFlags collects --param name=value and --list name=v1,v2 flags.
type paramFlags struct {
	values []string
	lists  []string
}

func (p *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&p.values, "param", nil, "bind a parameter, name=value (repeatable)")
	cmd.Flags().StringArrayVar(&p.lists, "list", nil, "bind a collection for an IN clause, name=v1,v2 (repeatable)")
}

func (p *paramFlags) params() (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(p.values)+len(p.lists))
	for _, kv := range p.values {
		name, value, err := splitPair(kv)
		if err != nil {
			return nil, err
		}
		params[name] = value
	}
	for _, kv := range p.lists {
		name, value, err := splitPair(kv)
		if err != nil {
			return nil, err
		}
		if value == "" {
			params[name] = []string{}
			continue
		}
		params[name] = strings.Split(value, ",")
	}
	return params, nil
}

func splitPair(kv string) (string, string, error) {
	name, value, ok := strings.Cut(kv, "=")
	if !ok || name == "" {
		return "", "", errors.Errorf("expected name=value, got %q", kv)
	}
	return name, value, nil
}
