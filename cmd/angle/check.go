package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/midbel/cli"

	"github.com/midbel/angle/xslt"
)

var checkCmd = cli.Command{
	Name:    "check",
	Alias:   []string{"compile"},
	Summary: "compile stylesheets and report their errors",
	Handler: &CheckCmd{},
}

type CheckCmd struct {
	FailFast bool
	Programs bool
	EngineOptions
}

func (c *CheckCmd) Run(args []string) error {
	set := flag.NewFlagSet("check", flag.ContinueOnError)
	set.BoolVar(&c.FailFast, "fail-fast", false, "stop checking files as soon as first error is encountered")
	set.BoolVar(&c.Programs, "programs", false, "print the compiled programs")
	c.EngineOptions.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	files, err := expandInputs(set.Args())
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()

	var (
		rep    = NewReporter(os.Stderr, c.Quiet)
		proc   = c.processor(rep.Diagnostics())
		failed int
	)
	for _, f := range files {
		sheet, err := proc.Compile(ctx, f)
		if err == nil {
			err = sheet.CompileAll()
		}
		if err != nil {
			failed++
			rep.Failure(fmt.Errorf("%s: %w", f, err))
			if c.FailFast {
				return errFail
			}
			continue
		}
		if c.Programs {
			for _, p := range sheet.Programs() {
				fmt.Fprintln(os.Stdout, p)
			}
		}
		rep.Success(fmt.Sprintf("%s: %d template(s) compiled", f, len(sheet.Templates())))
	}
	if n := rep.Count(xslt.MessageWarning); n > 0 && !c.Quiet {
		fmt.Fprintf(os.Stderr, "%d warning(s)\n", n)
	}
	if failed > 0 {
		return errFail
	}
	return nil
}
