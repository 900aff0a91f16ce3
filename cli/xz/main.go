// Copyright 2025 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	exitOK = iota
	errInvalidParameters
	errProcessingFailed
)

// Version of the xz CLI tool.
var Version = "unknown"

// Log is a global reference to our logger.
var Log *logrus.Logger

type simpleFormatter struct {
}

func (f *simpleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s: %s\n", entry.Level, entry.Message)), nil
}

func init() {
	Log = logrus.New()
	Log.Out = os.Stderr
	Log.Formatter = new(simpleFormatter)
}

func main() {
	if err := run(os.Args); err != nil {
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.NewApp()
	app.Name = "xz"
	app.Usage = "Compress or decompress .xz and .lzma files"
	app.UsageText = "xz [options] [file ...]"
	app.Version = Version
	// -v is --verbose, as in xz(1), so the version flag uses -V.
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version, V",
		Usage: "print the version",
	}

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "decompress, d",
			Usage: "Decompress instead of compress.",
		},
		cli.BoolFlag{
			Name:  "stdout, c",
			Usage: "Write to standard output and do not delete the input files.",
		},
		cli.BoolFlag{
			Name:  "test, t",
			Usage: "Test the integrity of compressed files without extracting.",
		},
		cli.BoolFlag{
			Name:  "list, l",
			Usage: "Print information about compressed files.",
		},
		cli.BoolFlag{
			Name:  "keep, k",
			Usage: "Keep (do not delete) input files.",
		},
		cli.BoolFlag{
			Name:  "force, f",
			Usage: "Overwrite existing output files.",
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "Be verbose; show a progress indicator when possible.",
		},
		cli.BoolFlag{
			Name:  "quiet, q",
			Usage: "Suppress warnings.",
		},
		cli.IntFlag{
			Name:  "level, p",
			Usage: "Compression preset `LEVEL` (0-9).",
			Value: 6,
		},
		cli.BoolFlag{
			Name:  "extreme, e",
			Usage: "Use the slower variant of the selected preset.",
		},
		cli.IntFlag{
			Name:  "threads, T",
			Usage: "Number of worker `THREADS`; 0 picks a safe automatic count.",
		},
		cli.StringFlag{
			Name:  "memlimit, M",
			Usage: "Memory usage `LIMIT` for decompression, e.g. 64MiB.",
		},
		cli.StringFlag{
			Name:  "check, C",
			Usage: "Integrity check `TYPE`: none, crc32, crc64 or sha256.",
			Value: "crc64",
		},
		cli.StringFlag{
			Name:  "format, F",
			Usage: "Container `FORMAT`: xz, lzma or auto.",
			Value: "auto",
		},
		cli.BoolFlag{
			Name:  "single-stream",
			Usage: "Decompress only the first stream and ignore trailing data.",
		},
		cli.Uint64Flag{
			Name:  "block-size",
			Usage: "Block `SIZE` in bytes for multi-threaded compression.",
		},
	}

	app.Action = func(c *cli.Context) error {
		config, err := configFromContext(c)
		if err != nil {
			return cli.NewExitError(err.Error(), errInvalidParameters)
		}

		if config.verbose {
			Log.SetLevel(logrus.DebugLevel)
		} else if config.quiet {
			Log.SetLevel(logrus.ErrorLevel)
		}

		files := []string(c.Args())
		if len(files) == 0 {
			// No operands: filter stdin to stdout.
			files = []string{""}
			config.stdout = true
		}

		failed := false
		for _, file := range files {
			if err := processFile(file, config); err != nil {
				Log.Errorf("%s: %s", displayName(file), err)
				failed = true
			}
		}
		if config.mode == modeList {
			printListTotals(config)
		}
		if failed {
			return cli.NewExitError("", errProcessingFailed)
		}
		return nil
	}

	return app.Run(args)
}
