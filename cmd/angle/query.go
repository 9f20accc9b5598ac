package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/midbel/cli"

	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
	"github.com/midbel/angle/xslt"
)

var queryCmd = cli.Command{
	Name:    "query",
	Alias:   []string{"exec"},
	Summary: "evaluate an xpath expression against a document",
	Handler: &QueryCmd{},
}

type QueryCmd struct {
	Noout bool
	Limit int
	Text  bool
	Trace bool
	NS    namespaces
}

const queryInfo = "query took %s - %d items matching %q"

func (q *QueryCmd) Run(args []string) error {
	set := flag.NewFlagSet("query", flag.ContinueOnError)
	set.IntVar(&q.Limit, "limit", 0, "limit number of results returned by query")
	set.BoolVar(&q.Noout, "quiet", false, "suppress output - default is to print the result nodes")
	set.BoolVar(&q.Text, "text", false, "print only value of node")
	set.BoolVar(&q.Trace, "trace", false, "trace the compilation of the expression")
	set.Var(&q.NS, "ns", "namespace given as prefix=uri")
	if err := set.Parse(args); err != nil {
		return err
	}
	cp := xpath.NewCompiler(set.Arg(0), q.NS)
	if q.Trace {
		cp.Tracer = xpath.TraceLogger(logger)
	}
	query, err := cp.Compile()
	if err != nil {
		return err
	}
	fetch := resource.DefaultMux(settings.Fetch.Retry, settings.Fetch.Timeout)
	doc, err := xslt.NewProcessor(fetch).Load(context.Background(), set.Arg(1))
	if err != nil {
		return err
	}
	now := time.Now()
	results, err := query.Find(doc)
	if err != nil {
		return err
	}
	elapsed := time.Since(now)
	if q.Limit > 0 && results.Len() > q.Limit {
		results = results[:q.Limit]
	}
	if !q.Noout {
		printResults(results, q.Text)
	}
	fmt.Fprintf(os.Stdout, queryInfo, elapsed, results.Len(), set.Arg(0))
	fmt.Fprintln(os.Stdout)
	if results.Empty() {
		return errFail
	}
	return nil
}

func printResults(results xpath.Sequence, text bool) {
	for _, i := range results {
		switch {
		case i.Atomic():
			fmt.Fprintln(os.Stdout, xpath.AsString(xpath.Singleton(i.Value())))
		case text:
			fmt.Fprintln(os.Stdout, xpath.StringValue(i.Node()))
		default:
			fmt.Fprintln(os.Stdout, xml.WriteNode(i.Node()))
		}
	}
}

// namespaces resolves the prefixes given on the command line.
type namespaces map[string]string

func (n *namespaces) Set(str string) error {
	prefix, uri, ok := strings.Cut(str, "=")
	if !ok || prefix == "" {
		return fmt.Errorf("%s: prefix=uri expected", str)
	}
	if *n == nil {
		*n = make(namespaces)
	}
	(*n)[prefix] = uri
	return nil
}

func (n *namespaces) String() string {
	var list []string
	for p, u := range *n {
		list = append(list, p+"="+u)
	}
	return strings.Join(list, ",")
}

func (n namespaces) ResolvePrefix(prefix string) (string, bool) {
	if prefix == "" {
		return "", true
	}
	uri, ok := n[prefix]
	return uri, ok
}
