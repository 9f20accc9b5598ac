package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/midbel/cli"
	"go.uber.org/zap"

	"github.com/midbel/angle/config"
)

var errFail = errors.New("fail")

var (
	summary = "angle transforms xml documents with xslt 1.0 stylesheets"
	help    = `angle compiles xslt stylesheets and runs them against xml documents.

Settings are read from the environment (ANGLE_LOG_LEVEL, ANGLE_MAX_DEPTH,
ANGLE_HTTP_TIMEOUT, ANGLE_ADDR...).`
)

var (
	settings = config.Default()
	logger   = zap.NewNop()
)

func main() {
	var (
		set  = cli.NewFlagSet("angle")
		root = prepare()
	)
	root.SetSummary(summary)
	root.SetHelp(help)
	if err := set.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			root.Help()
			os.Exit(2)
		}
	}
	if err := setup(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	err := root.Execute(set.Args())
	if err != nil {
		if s, ok := err.(cli.SuggestionError); ok && len(s.Others) > 0 {
			fmt.Fprintln(os.Stderr, "similar command(s)")
			for _, n := range s.Others {
				fmt.Fprintln(os.Stderr, "-", n)
			}
		}
		if !errors.Is(err, errFail) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	settings, logger = cfg, log
	return nil
}

func prepare() *cli.CommandTrie {
	root := cli.New()
	root.Register([]string{"transform"}, &transformCmd)
	root.Register([]string{"process"}, &processCmd)
	root.Register([]string{"check"}, &checkCmd)
	root.Register([]string{"serve"}, &serveCmd)
	root.Register([]string{"query"}, &queryCmd)
	root.Register([]string{"format"}, &formatCmd)

	return root
}
