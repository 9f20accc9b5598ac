package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/midbel/cli"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/midbel/angle/xslt"
)

var transformCmd = cli.Command{
	Name:    "transform",
	Summary: "apply transformation defined in xslt to xml documents",
	Handler: &TransformCmd{},
}

var profileModes = map[string]func(*profile.Profile){
	"cpu":   profile.CPUProfile,
	"mem":   profile.MemProfile,
	"block": profile.BlockProfile,
	"trace": profile.TraceProfile,
}

type TransformCmd struct {
	File    string
	Dir     string
	Profile string
	Jobs    int
	EngineOptions
}

func (c *TransformCmd) Run(args []string) error {
	set := flag.NewFlagSet("transform", flag.ContinueOnError)
	set.StringVar(&c.File, "o", "", "output file when transforming one document")
	set.StringVar(&c.Dir, "d", "", "output directory when transforming many documents")
	set.StringVar(&c.Profile, "profile", "", "write a cpu, mem, block or trace profile in the current directory")
	set.IntVar(&c.Jobs, "j", runtime.NumCPU(), "number of documents transformed in parallel")
	c.EngineOptions.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() < 2 {
		return fmt.Errorf("usage: transform [options] <stylesheet> <document|glob>...")
	}
	if c.Profile != "" {
		mode, ok := profileModes[c.Profile]
		if !ok {
			return fmt.Errorf("%s: unknown profile mode", c.Profile)
		}
		defer profile.Start(mode, profile.ProfilePath("."), profile.Quiet).Stop()
	}
	files, err := expandInputs(set.Args()[1:])
	if err != nil {
		return err
	}
	params, err := c.params()
	if err != nil {
		return err
	}

	ctx, cancel := interruptible()
	defer cancel()

	var (
		rep  = NewReporter(os.Stderr, c.Quiet)
		proc = c.processor(rep.Diagnostics())
	)
	sheet, err := proc.Compile(ctx, set.Arg(0))
	if err != nil {
		return rep.Failure(err)
	}
	if len(files) == 1 && c.Dir == "" {
		return c.transform(ctx, proc, sheet, files[0], c.File, params)
	}
	if c.Dir == "" {
		return fmt.Errorf("many documents given: output directory required (-d)")
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	grp, sub := errgroup.WithContext(ctx)
	grp.SetLimit(max(c.Jobs, 1))
	for _, f := range files {
		out := outputName(c.Dir, f, sheet.Output())
		grp.Go(func() error {
			if err := c.transform(sub, proc, sheet, f, out, params); err != nil {
				rep.Failure(fmt.Errorf("%s: %w", f, err))
				return err
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return errFail
	}
	rep.Success(fmt.Sprintf("%d document(s) transformed", len(files)))
	return nil
}

func (c *TransformCmd) transform(ctx context.Context, proc *xslt.Processor, sheet *xslt.Stylesheet, file, out string, params map[string]string) error {
	now := time.Now()
	doc, err := proc.Load(ctx, file)
	if err != nil {
		return err
	}
	w, err := createOutput(out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := sheet.Transform(ctx, doc, params, w); err != nil {
		return err
	}
	logger.Info("document transformed",
		zap.String("file", file),
		zap.String("output", out),
		zap.Duration("elapsed", time.Since(now)),
	)
	return nil
}

// expandInputs replaces the glob patterns in list by the files they match.
func expandInputs(list []string) ([]string, error) {
	var files []string
	for _, str := range list {
		if !strings.ContainsAny(str, "*?[{") {
			files = append(files, str)
			continue
		}
		matches, err := doublestar.FilepathGlob(str, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", str, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no document matching given patterns")
	}
	return files, nil
}

func outputName(dir, file string, out *xslt.Output) string {
	ext := ".xml"
	switch out.Method {
	case xslt.MethodHTML:
		ext = ".html"
	case xslt.MethodText:
		ext = ".txt"
	}
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(dir, base+ext)
}
