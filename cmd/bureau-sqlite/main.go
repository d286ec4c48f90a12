// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-sqlite runs SQL queries through a pool of statement-caching
// SQLite connections. It is the command-line face of lib/sqlitepool:
// useful for poking at a database file, and for watching how checkouts
// spread over connections and how often each connection's statement
// cache hits.
//
// Configuration comes from --config, then SQLITECACHE_CONFIG, then
// built-in defaults. Flags override whatever the config file says.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sqlitecache/lib/codec"
	"github.com/bureau-foundation/sqlitecache/lib/config"
	"github.com/bureau-foundation/sqlitecache/lib/sqliteconn"
	"github.com/bureau-foundation/sqlitecache/lib/sqlitepool"
	"github.com/bureau-foundation/sqlitecache/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	path        string
	mode        string
	busyTimeout string
	poolSize    int
	repeat      int
	statsFile   string
	logLevel    string
	queries     []string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("bureau-sqlite", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML config file (default: $SQLITECACHE_CONFIG, then built-in defaults)")
	flagSet.StringVar(&opts.path, "path", "", "database file (overrides database.path)")
	flagSet.StringVar(&opts.mode, "mode", "", "access mode: read-only, read-write, read-write-create (overrides database.mode)")
	flagSet.StringVar(&opts.busyTimeout, "busy-timeout", "", "lock wait before failing, e.g. 250ms (overrides database.busy_timeout)")
	flagSet.IntVar(&opts.poolSize, "pool-size", 0, "maximum connections (overrides database.pool_size)")
	flagSet.IntVar(&opts.repeat, "repeat", 1, "number of times to run each query")
	flagSet.StringVar(&opts.statsFile, "stats-file", "", "write per-connection statistics to this file as CBOR")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, or error (overrides log.level)")
	showVersion := flagSet.Bool("version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if *showVersion {
		version.Print(stdout, "bureau-sqlite")
		return nil
	}

	opts.queries = flagSet.Args()
	if len(opts.queries) == 0 {
		return fmt.Errorf("at least one query is required (see --help)")
	}
	if opts.repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1, got %d", opts.repeat)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, flagSet, &opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}

	poolConfig, err := cfg.PoolConfig(logger)
	if err != nil {
		return err
	}
	if poolConfig.Mode == sqliteconn.ModeReadWriteCreate {
		if err := os.MkdirAll(filepath.Dir(poolConfig.Path), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	pool, err := sqlitepool.Open(poolConfig)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := runQueries(ctx, pool, opts.queries, stdout); err != nil {
		return err
	}
	if err := repeatQueries(ctx, pool, opts.queries, opts.repeat-1); err != nil {
		return err
	}

	stats := pool.Stats()
	printStats(stdout, stats)

	if opts.statsFile != "" {
		snapshot := newStatsSnapshot(cfg, stats, time.Now())
		if err := codec.WriteFile(opts.statsFile, snapshot); err != nil {
			return fmt.Errorf("writing stats file: %w", err)
		}
		logger.Info("stats written", "path", opts.statsFile, "connections", len(stats))
	}

	return pool.Close()
}

// loadConfig reads the config named by --config, then by
// SQLITECACHE_CONFIG. With neither set the built-in defaults apply, so
// the tool works with flags alone.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if os.Getenv(config.EnvVar) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cfg *config.Config, flagSet *pflag.FlagSet, opts *options) {
	if flagSet.Changed("path") {
		cfg.Database.Path = opts.path
	}
	if flagSet.Changed("mode") {
		cfg.Database.Mode = opts.mode
	}
	if flagSet.Changed("busy-timeout") {
		cfg.Database.BusyTimeout = opts.busyTimeout
	}
	if flagSet.Changed("pool-size") {
		cfg.Database.PoolSize = opts.poolSize
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
}

// runQueries runs each query once, in order, and prints its rows as
// tab-separated text.
func runQueries(ctx context.Context, borrower sqlitepool.Borrower, queries []string, stdout io.Writer) error {
	for _, query := range queries {
		err := sqlitepool.With(ctx, borrower, func(conn *sqliteconn.Connection) error {
			rows, err := stepAll(conn, query)
			if err != nil {
				return err
			}
			for _, row := range rows {
				fmt.Fprintln(stdout, strings.Join(row, "\t"))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// repeatQueries runs every query rounds more times, spread over one
// worker per pool slot. Rows are discarded.
func repeatQueries(ctx context.Context, pool *sqlitepool.Pool, queries []string, rounds int) error {
	if rounds <= 0 {
		return nil
	}

	work := make(chan string)
	var (
		waitGroup sync.WaitGroup
		mu        sync.Mutex
		errs      []error
	)
	for range pool.Size() {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for query := range work {
				err := sqlitepool.With(ctx, pool, func(conn *sqliteconn.Connection) error {
					_, err := stepAll(conn, query)
					return err
				})
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for range rounds {
		for _, query := range queries {
			select {
			case work <- query:
			case <-ctx.Done():
				break feed
			}
		}
	}
	close(work)
	waitGroup.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// stepAll runs the cached statement for query to completion and
// returns its rows as text.
func stepAll(conn *sqliteconn.Connection, query string) ([][]string, error) {
	stmt, err := conn.Statement(query)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, fmt.Errorf("running %q: %w", query, err)
		}
		if !hasRow {
			return rows, nil
		}
		row := make([]string, stmt.ColumnCount())
		for column := range row {
			row[column] = stmt.ColumnText(column)
		}
		rows = append(rows, row)
	}
}

func printStats(w io.Writer, stats []sqlitepool.ConnectionStats) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "INDEX\tUSES\tSTATEMENTS\tHITS\tMISSES")
	for _, entry := range stats {
		fmt.Fprintf(writer, "%d\t%d\t%d\t%d\t%d\n",
			entry.Index, entry.UseCount, entry.Statements, entry.Hits, entry.Misses)
	}
	writer.Flush()
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `bureau-sqlite runs SQL queries through a pool of statement-caching
SQLite connections and reports how each connection's cache was used.

Each query is compiled once per connection and reused on every later
run. Rows from the first run are printed as tab-separated text; a
per-connection table of use counts and cache hits follows.

In read-write-create mode the database's parent directory is created
if missing; the other modes require the file to exist already.

Usage:
  bureau-sqlite [flags] QUERY...

Examples:
  bureau-sqlite --path items.db --mode read-write-create "CREATE TABLE IF NOT EXISTS items(id INTEGER PRIMARY KEY, name TEXT)"
  bureau-sqlite --path items.db --mode read-only --repeat 100 --stats-file stats.cbor "SELECT count(*) FROM items"

Flags:
`)
	flagSet.PrintDefaults()
}
