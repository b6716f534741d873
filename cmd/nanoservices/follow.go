package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/SuperID/nanoservices/internal/config"
	"github.com/SuperID/nanoservices/pkg/commsutil"
	"github.com/SuperID/nanoservices/pkg/recorder"
	"github.com/SuperID/nanoservices/pkg/tracelog"
)

const followLogPrefix = "nanoservices:follow"

type followConfig struct {
	*rootConfig

	file         string
	prefix       string
	ignoreErrors bool
	poll         time.Duration
	fromComms    bool
	commsURL     string
	subject      string
}

func (cfg *followConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'f', LongName: "file" /*          */, Value: ffval.NewValue(&cfg.file) /*                           */, Usage: "trace log to follow, - for stdin", Placeholder: "FILE"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'p', LongName: "prefix" /*        */, Value: ffval.NewValue(&cfg.prefix) /*                         */, Usage: "only print records under this request ID prefix", Placeholder: "ID"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "ignore-errors" /* */, Value: ffval.NewValue(&cfg.ignoreErrors) /*                   */, Usage: "skip malformed lines instead of failing", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "poll" /*          */, Value: ffval.NewValueDefault(&cfg.poll, 100*time.Millisecond), Usage: "with a file, wait this long for new lines at end of file; 0 stops at end of file"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'c', LongName: "comms" /*         */, Value: ffval.NewValue(&cfg.fromComms) /*                      */, Usage: "subscribe to trace events on COMMS instead of reading a file", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "comms-url" /*     */, Value: ffval.NewValue(&cfg.commsURL) /*                       */, Usage: "COMMS server URL (default COMMS_URL)", Placeholder: "URL"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "subject" /*       */, Value: ffval.NewValue(&cfg.subject) /*                        */, Usage: "trace subject prefix (default TRACE_SUBJECT or " + commsutil.SubjectTrace + ")", Placeholder: "SUBJECT"})
}

func (cfg *followConfig) Exec(ctx context.Context, args []string) error {
	if cfg.file == "" && len(args) > 0 {
		cfg.file, args = args[0], args[1:]
	}
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}

	filter := tracelog.NewFilter(tracelog.FilterOptions{
		RequestID:       cfg.prefix,
		IgnoreErrorLine: cfg.ignoreErrors,
		NoRetain:        true,
		OnRecord: func(r tracelog.Record) {
			fmt.Fprintln(cfg.stdout, tracelog.RenderLive(r))
		},
	})

	var g run.Group

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			if cfg.fromComms {
				return cfg.followComms(ctx, filter)
			}
			return cfg.followFile(ctx, filter)
		}, func(error) {
			cancel()
		})
	}

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	return g.Run()
}

func (cfg *followConfig) followFile(ctx context.Context, filter *tracelog.Filter) error {
	r, done, err := openInput(cfg.stdin, cfg.file)
	if err != nil {
		return err
	}
	defer done()

	if cfg.poll > 0 && cfg.file != "" && cfg.file != "-" {
		r = &tailReader{ctx: ctx, r: r, poll: cfg.poll}
	}
	_, err = filter.ReadFrom(r)
	return err
}

func (cfg *followConfig) followComms(ctx context.Context, filter *tracelog.Filter) error {
	url, subject := cfg.commsURL, cfg.subject
	if url == "" || subject == "" {
		c, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if url == "" {
			url = c.COMMSURL
		}
		if subject == "" {
			subject = c.TraceSubject
		}
	}

	nc, err := commsutil.Connect(url, "nanoservices-follow")
	if err != nil {
		return err
	}
	defer commsutil.Close(nc)

	wildcard := commsutil.BuildTraceWildcard(subject)
	sub, err := nc.Subscribe(wildcard, func(msg *comms.Msg) {
		var m recorder.Message
		if err := commsutil.DecodePayload(msg.Data, &m); err != nil {
			slog.Warn(fmt.Sprintf("%s - bad message on %s: %v", followLogPrefix, msg.Subject, err))
			return
		}
		filter.Add(tracelog.FromEvent(m.Event()))
	})
	if err != nil {
		return fmt.Errorf("%s - subscribe %s: %w", followLogPrefix, wildcard, err)
	}
	defer sub.Unsubscribe()
	slog.Info(fmt.Sprintf("%s - Following %s", followLogPrefix, wildcard))

	<-ctx.Done()
	return ctx.Err()
}

// tailReader turns end of file into a wait for more data, until ctx is done.
type tailReader struct {
	ctx  context.Context
	r    io.Reader
	poll time.Duration
}

func (t *tailReader) Read(p []byte) (int, error) {
	for {
		n, err := t.r.Read(p)
		if n > 0 || (err != nil && err != io.EOF) {
			return n, err
		}
		select {
		case <-t.ctx.Done():
			return 0, t.ctx.Err()
		case <-time.After(t.poll):
		}
	}
}
