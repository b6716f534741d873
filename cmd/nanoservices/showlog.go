package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/SuperID/nanoservices/pkg/db"
	"github.com/SuperID/nanoservices/pkg/tracelog"
)

type showlogConfig struct {
	*rootConfig

	file         string
	prefix       string
	fromDB       bool
	ignoreErrors bool
	since        time.Duration
	limit        int

	listOnly bool
}

func (cfg *showlogConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'f', LongName: "file" /*          */, Value: ffval.NewValue(&cfg.file) /*                  */, Usage: "trace log to read, - for stdin", Placeholder: "FILE"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'p', LongName: "prefix" /*        */, Value: ffval.NewValue(&cfg.prefix) /*                */, Usage: "request ID prefix to select", Placeholder: "ID"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "db" /*            */, Value: ffval.NewValue(&cfg.fromDB) /*                */, Usage: "read from the trace_events table (DATABASE_URL)", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "ignore-errors" /* */, Value: ffval.NewValue(&cfg.ignoreErrors) /*          */, Usage: "skip malformed lines instead of failing", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "since" /*         */, Value: ffval.NewValue(&cfg.since) /*                 */, Usage: "with --db, only events newer than this", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 'n', LongName: "limit" /*         */, Value: ffval.NewValueDefault(&cfg.limit, db.DefaultListLimit), Usage: "with --db, maximum number of events to read"})
}

func (cfg *showlogConfig) Exec(ctx context.Context, args []string) error {
	if cfg.file == "" && len(args) > 0 {
		cfg.file, args = args[0], args[1:]
	}
	if cfg.prefix == "" && len(args) > 0 && !cfg.listOnly {
		cfg.prefix, args = args[0], args[1:]
	}
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}

	if cfg.fromDB && cfg.listOnly {
		return cfg.listStoredIDs(ctx)
	}

	records, err := cfg.readRecords(ctx)
	if err != nil {
		return err
	}
	forest := tracelog.Build(records)

	if cfg.listOnly || cfg.prefix == "" {
		for _, id := range forest.IDs() {
			fmt.Fprintln(cfg.stdout, id)
		}
		return nil
	}

	nodes := forest.Select(cfg.prefix)
	if len(nodes) == 0 {
		return fmt.Errorf("no trace records under %q", cfg.prefix)
	}
	return tracelog.Render(cfg.stdout, nodes)
}

func (cfg *showlogConfig) readRecords(ctx context.Context) ([]tracelog.Record, error) {
	if cfg.fromDB {
		repo, done, err := openRepository(ctx)
		if err != nil {
			return nil, err
		}
		defer done()

		params := db.ListEventsParams{Prefix: cfg.prefix, Limit: cfg.limit}
		if cfg.since > 0 {
			params.Since = time.Now().Add(-cfg.since)
		}
		rows, err := repo.ListEvents(ctx, params)
		if err != nil {
			return nil, err
		}
		records := make([]tracelog.Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, tracelog.FromEvent(row.Event()))
		}
		return records, nil
	}

	r, done, err := openInput(cfg.stdin, cfg.file)
	if err != nil {
		return nil, err
	}
	defer done()
	return tracelog.ReadRecords(r, cfg.prefix, cfg.ignoreErrors)
}

func (cfg *showlogConfig) listStoredIDs(ctx context.Context) error {
	repo, done, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer done()

	ids, err := repo.ListRequestIDs(ctx, cfg.prefix)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(cfg.stdout, id)
	}
	return nil
}

// openInput opens file for reading; an empty name or "-" reads stdin.
func openInput(stdin io.Reader, file string) (io.Reader, func(), error) {
	if file == "" || file == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// openRepository connects to DATABASE_URL.
func openRepository(ctx context.Context) (*db.Repository, func(), error) {
	pool, err := openPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return db.NewRepository(pool), pool.Close, nil
}
