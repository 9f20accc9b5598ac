package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/midbel/cli"
	"go.uber.org/zap"
)

var processCmd = cli.Command{
	Name:    "process",
	Summary: "transform documents with the stylesheet named in their xml-stylesheet instruction",
	Handler: &ProcessCmd{},
}

type ProcessCmd struct {
	File string
	EngineOptions
}

func (c *ProcessCmd) Run(args []string) error {
	set := flag.NewFlagSet("process", flag.ContinueOnError)
	set.StringVar(&c.File, "o", "", "output file")
	c.EngineOptions.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 1 {
		return fmt.Errorf("usage: process [options] <document>")
	}
	params, err := c.params()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()

	w, err := createOutput(c.File)
	if err != nil {
		return err
	}
	defer w.Close()

	var (
		rep  = NewReporter(os.Stderr, c.Quiet)
		proc = c.processor(rep.Diagnostics())
		now  = time.Now()
	)
	if err := proc.Process(ctx, set.Arg(0), params, w); err != nil {
		return rep.Failure(err)
	}
	logger.Info("document processed",
		zap.String("file", set.Arg(0)),
		zap.Duration("elapsed", time.Since(now)),
	)
	return nil
}
