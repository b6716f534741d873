// nanoservices runs the demo service host and inspects the trace logs it produces.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/SuperID/nanoservices/internal/server"
)

func main() {
	var (
		ctx    = context.Background()
		stdin  = os.Stdin
		stdout = os.Stdout
		stderr = os.Stderr
		args   = os.Args[1:]
	)
	err := exec(ctx, stdin, stdout, stderr, args)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.As(err, &(run.SignalError{})):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootConfig struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logLevel string
}

func (cfg *rootConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'l',
		LongName:    "log-level",
		Value:       ffval.NewEnum(&cfg.logLevel, "warn", "debug", "info", "error"),
		Usage:       "diagnostic log level: debug, info, warn, error",
		Placeholder: "LEVEL",
	})
}

func exec(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) (err error) {
	rootConfig := &rootConfig{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	rootFlags := ff.NewFlagSet("nanoservices")
	rootConfig.register(rootFlags)

	rootCommand := &ff.Command{
		Name:      "nanoservices",
		Usage:     "nanoservices [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "run the demo service host and reconstruct call trees from trace logs",
		Flags:     rootFlags,
	}

	serveCommand := &ff.Command{
		Name:      "serve",
		ShortHelp: "start the service host (configured from the environment)",
		LongHelp:  "Start the demo services, trace recorders, and the HTTP health and trace viewer. See LOG_LEVEL, TRACE_RECORDERS, DATABASE_URL, COMMS_URL.",
		Flags:     ff.NewFlagSet("serve").SetParent(rootFlags),
		Exec: func(ctx context.Context, _ []string) error {
			return server.Run(ctx, rootConfig.stdout, rootConfig.stderr)
		},
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, serveCommand)

	showlogCfg := &showlogConfig{rootConfig: rootConfig}
	showlogFlags := ff.NewFlagSet("showlog").SetParent(rootFlags)
	showlogCfg.register(showlogFlags)
	rootCommand.Subcommands = append(rootCommand.Subcommands, &ff.Command{
		Name:      "showlog",
		Usage:     "nanoservices showlog [FLAGS] [FILE] [PREFIX]",
		ShortHelp: "print the call tree of the requests under a request ID prefix",
		LongHelp:  "Read a trace log (file, stdin, or the trace_events table) and render the call tree under PREFIX. Without a prefix, every request ID is listed.",
		Flags:     showlogFlags,
		Exec:      showlogCfg.Exec,
	})

	idsConfig := &showlogConfig{rootConfig: rootConfig, listOnly: true}
	idsFlags := ff.NewFlagSet("ids").SetParent(rootFlags)
	idsConfig.register(idsFlags)
	rootCommand.Subcommands = append(rootCommand.Subcommands, &ff.Command{
		Name:      "ids",
		Usage:     "nanoservices ids [FLAGS] [FILE]",
		ShortHelp: "list the request IDs in a trace log",
		Flags:     idsFlags,
		Exec:      idsConfig.Exec,
	})

	followConfig := &followConfig{rootConfig: rootConfig}
	followFlags := ff.NewFlagSet("follow").SetParent(rootFlags)
	followConfig.register(followFlags)
	rootCommand.Subcommands = append(rootCommand.Subcommands, &ff.Command{
		Name:      "follow",
		Usage:     "nanoservices follow [FLAGS] [FILE]",
		ShortHelp: "print trace records as they are written, indented by call depth",
		LongHelp:  "Follow a trace log file, stdin, or the COMMS trace subjects, printing each record under --prefix as it arrives.",
		Flags:     followFlags,
		Exec:      followConfig.Exec,
	})

	migrateConfig := &migrateConfig{rootConfig: rootConfig}
	migrateFlags := ff.NewFlagSet("migrate").SetParent(rootFlags)
	migrateConfig.register(migrateFlags)
	rootCommand.Subcommands = append(rootCommand.Subcommands, &ff.Command{
		Name:      "migrate",
		Usage:     "nanoservices migrate [FLAGS] up|status",
		ShortHelp: "apply or inspect the trace_events schema",
		Flags:     migrateFlags,
		Exec:      migrateConfig.Exec,
	})

	clearConfig := &clearConfig{rootConfig: rootConfig}
	clearFlags := ff.NewFlagSet("clear").SetParent(rootFlags)
	clearConfig.register(clearFlags)
	rootCommand.Subcommands = append(rootCommand.Subcommands, &ff.Command{
		Name:      "clear",
		ShortHelp: "delete stored trace events; the schema is preserved",
		Flags:     clearFlags,
		Exec:      clearConfig.Exec,
	})

	// Print help when appropriate.
	showHelp := true
	defer func() {
		errHelp := errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec)
		if showHelp || errHelp {
			fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
		}
		if errHelp {
			err = nil
		}
	}()

	if err := rootCommand.Parse(args, ff.WithEnvVarPrefix("NANOSERVICES")); err != nil {
		return err
	}

	server.ConfigureLogging(stderr, rootConfig.logLevel)

	// Run errors shouldn't show help by default.
	showHelp = false

	return rootCommand.Run(ctx)
}
