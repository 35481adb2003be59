package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
)

type Options struct {
	OnError string
	Summary bool
	Verbose bool
	Files   []string
}

type summary struct {
	Records  int
	Rejected int
	Bytes    uint64
}

var log = logrus.New()

func main() {
	app := cli.NewApp()
	app.Name = "clfparse"
	app.Usage = "Parse combined-format access logs into JSON lines"
	app.ArgsUsage = "[file...]"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "on-error",
			Usage:  "What to do with malformed lines: fail, skip or stop",
			Value:  "fail",
			EnvVar: "CLF_ON_ERROR",
		},
		cli.BoolFlag{
			Name:  "summary",
			Usage: "Print record counts and bytes sent to stderr",
		},
		cli.BoolFlag{
			Name:  "v",
			Usage: "Verbose mode",
		},
	}
	app.Action = func(c *cli.Context) error {
		return run(Options{
			OnError: c.String("on-error"),
			Summary: c.Bool("summary"),
			Verbose: c.Bool("v"),
			Files:   c.Args(),
		}, os.Stdin, os.Stdout, os.Stderr)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts Options, stdin io.Reader, stdout, stderr io.Writer) error {
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	policy, err := clf.ParsePolicy(opts.OnError)
	if err != nil {
		return err
	}

	files := opts.Files
	if len(files) == 0 {
		files = []string{"-"}
	}

	out := bufio.NewWriter(stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)

	var sum summary
	for _, name := range files {
		stopped, err := parseFile(name, stdin, policy, enc, &sum)
		if err != nil {
			return err
		}
		if stopped {
			break
		}
	}

	if opts.Summary {
		fmt.Fprintf(stderr, "records: %d, rejected: %d, bytes sent: %s\n",
			sum.Records, sum.Rejected, humanize.Bytes(sum.Bytes))
	}
	return nil
}

// parseFile streams one input through the parser. It reports stopped when
// the stop policy ended the stream, so later files are not read either.
func parseFile(name string, stdin io.Reader, policy clf.ErrorHandler, enc *json.Encoder, sum *summary) (bool, error) {
	var r io.Reader = stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return false, err
		}
		defer f.Close()
		r = f
	}

	stopped := false
	var onError clf.ErrorHandler
	if policy != nil {
		onError = func(err *clf.Error) bool {
			sum.Rejected++
			if policy(err) {
				log.WithField("file", name).Warn(err.Error())
				return true
			}
			stopped = true
			return false
		}
	}

	lines, scanErr := clf.Lines(r)
	for rec, err := range clf.NewStream(onError).Records(lines) {
		if err != nil {
			return false, fmt.Errorf("%s: %w", name, err)
		}
		if err := enc.Encode(rec); err != nil {
			return false, err
		}
		sum.Records++
		if rec.BodyBytesSent != "-" {
			if n, err := strconv.ParseUint(rec.BodyBytesSent, 10, 64); err == nil {
				sum.Bytes += n
			}
		}
	}
	if err := scanErr(); err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return stopped, nil
}
