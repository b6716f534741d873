package main

import (
	"context"
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/SuperID/nanoservices/pkg/db"
)

type clearConfig struct {
	*rootConfig

	before time.Duration
}

func (cfg *clearConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{LongName: "before", Value: ffval.NewValue(&cfg.before), Usage: "only delete events older than this, e.g. 72h", Placeholder: "AGE", NoDefault: true})
}

func (cfg *clearConfig) Exec(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.before > 0 {
		n, err := db.PruneTraceEvents(ctx, pool, time.Now().Add(-cfg.before))
		if err != nil {
			return err
		}
		fmt.Fprintf(cfg.stdout, "deleted %d trace events\n", n)
		return nil
	}
	if err := db.ClearTraceEvents(ctx, pool); err != nil {
		return err
	}
	fmt.Fprintln(cfg.stdout, "trace_events cleared")
	return nil
}
