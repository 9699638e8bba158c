// Command batchvm runs an Ethereum state-test fixture as a batch of
// independent instances and writes the resulting trace documents to
// stdout as JSON.
//
// Usage:
//
//	batchvm run <fixture.json>
//
// Flags:
//
//	--workers     Maximum concurrent instances (default: number of CPUs)
//	--log-format  Log output format: json, text, or color (default: json)
//	--log-level   Minimum log level: debug, info, warn, error (default: info)
//
// Exit code is non-zero if any instance ended with error_code in
// {INVALID_OPCODE, DEPTH_EXCEEDED, ABORTED}, or if the fixture failed to
// parse.
package main

import (
	"os"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/batchvm/batchvm/log"
)

var logger = log.Default().Module("batchvm")

// configureLogging rebuilds the default logger from the --log-format and
// --log-level flags before any command runs, so operational logging for
// the rest of the process goes through the chosen formatter.
func configureLogging(c *cli.Context) error {
	formatter := log.FormatterByName(c.String("log-format"))
	log.SetDefault(log.NewFormatted(c.String("log-level"), os.Stderr, formatter))
	logger = log.Default().Module("batchvm")
	return nil
}

func main() {
	os.Exit(run(os.Args))
}

// run is the actual entry point, returning a process exit code. It takes
// the full os.Args (including argv[0]) so it can be driven from tests in
// isolation, matching the run(args)-returns-code idiom used elsewhere in
// this family of CLIs.
func run(args []string) int {
	exitCode = 0
	app := &cli.App{
		Name:  "batchvm",
		Usage: "run an Ethereum state-test fixture as a batch of independent instances",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log output format: json, text, or color",
				Value: "json",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "minimum log level: debug, info, warn, error",
				Value: "info",
			},
		},
		Before: configureLogging,
		Commands: []*cli.Command{
			runCommand(),
		},
	}
	if err := app.Run(args); err != nil {
		logger.Error("batchvm failed", "error", err)
		return 1
	}
	return exitCode
}

// exitCode is set by runCommand's Action before returning, since
// urfave/cli's App.Run only reports success/failure via an error, not an
// arbitrary exit status.
var exitCode int

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a fixture and print its trace documents",
		ArgsUsage: "<fixture.json>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "workers",
				Usage: "maximum concurrent instances",
				Value: runtime.NumCPU(),
			},
		},
		Action: runAction,
	}
}
