package main

import (
	"context"
	"flag"

	"github.com/midbel/cli"

	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xslt"
)

var formatCmd = cli.Command{
	Name:    "format",
	Summary: "pretty print a xml document",
	Handler: &FormatCmd{},
}

type FormatCmd struct {
	OutFile   string
	NoProlog  bool
	NoComment bool
	Compact   bool
	Indent    string
}

func (f *FormatCmd) Run(args []string) error {
	set := flag.NewFlagSet("format", flag.ContinueOnError)

	set.BoolVar(&f.NoProlog, "no-prolog", false, "don't write the xml prolog into the output document")
	set.BoolVar(&f.NoComment, "no-comment", false, "dont't write the comment present in the input document")
	set.BoolVar(&f.Compact, "compact", false, "write compact output")
	set.StringVar(&f.Indent, "indent", "  ", "indentation of nested elements")
	set.StringVar(&f.OutFile, "f", "", "specify the path to the file where the document will be written")

	if err := set.Parse(args); err != nil {
		return err
	}

	fetch := resource.DefaultMux(settings.Fetch.Retry, settings.Fetch.Timeout)
	doc, err := xslt.NewProcessor(fetch).Load(context.Background(), set.Arg(0))
	if err != nil {
		return err
	}
	w, err := createOutput(f.OutFile)
	if err != nil {
		return err
	}
	defer w.Close()

	ws := xml.NewWriter(w)
	ws.Indent = f.Indent
	if f.NoProlog {
		ws.WriterOptions |= xml.OptionNoProlog
	}
	if f.NoComment {
		ws.WriterOptions |= xml.OptionNoComment
	}
	if f.Compact {
		ws.WriterOptions |= xml.OptionCompact
	}
	return ws.Write(doc)
}
