package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/typhoonworks/lotus-sub001/pkg/config"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	_ "github.com/typhoonworks/lotus-sub001/pkg/engines/mysql"
	_ "github.com/typhoonworks/lotus-sub001/pkg/engines/postgres"
	_ "github.com/typhoonworks/lotus-sub001/pkg/engines/sqlite"
	"github.com/typhoonworks/lotus-sub001/pkg/executor"
	"github.com/typhoonworks/lotus-sub001/pkg/logging"
	"github.com/typhoonworks/lotus-sub001/pkg/visibility"
)

// Version is set at build time via ldflags
var Version = "dev"

type varFlags map[string]string

func (v varFlags) String() string { return "" }

func (v varFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v[name] = value
	return nil
}

func main() {
	var (
		configPath = flag.String("config", "lotus.yml", "path to the configuration file")
		sqlText    = flag.String("sql", "", "statement to execute, with {{var}} placeholders")
		sqlFile    = flag.String("file", "", "read the statement from a file instead of -sql")
		searchPath = flag.String("search-path", "", "schema search path for the execution")
		values     = varFlags{}
	)
	flag.Var(values, "var", "variable value as name=value (repeatable)")
	flag.Parse()

	if err := run(*configPath, *sqlText, *sqlFile, *searchPath, values); err != nil {
		log.Fatalf("lotus: %v", err)
	}
}

func run(configPath, sqlText, sqlFile, searchPath string, values map[string]string) error {
	if sqlFile != "" {
		data, err := os.ReadFile(sqlFile)
		if err != nil {
			return err
		}
		sqlText = string(data)
	}
	if sqlText == "" {
		return fmt.Errorf("no statement given; use -sql or -file")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	engine, err := engines.New(ctx, cfg.Engine.Driver, &cfg.Engine, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	rules, err := visibility.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}

	exec := executor.New(engine, rules, logger)
	result, err := exec.Execute(ctx, executor.Request{
		SQL:    sqlText,
		Values: values,
		Session: engines.Session{
			StatementTimeout: cfg.StatementTimeout,
			SearchPath:       searchPath,
			Timeout:          cfg.QueryTimeout,
		},
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
