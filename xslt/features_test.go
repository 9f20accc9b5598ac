package xslt_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/midbel/angle/loop"
	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xslt"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"testdata/features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature suite failed")
	}
}

type scenarioState struct {
	files  resource.Memory
	params map[string]string
	out    bytes.Buffer
	pass   *xml.Builder
	state  xslt.DriverState
	err    error
}

func initializeScenario(ctx *godog.ScenarioContext) {
	s := scenarioState{
		files:  make(resource.Memory),
		params: make(map[string]string),
	}
	ctx.Step(`^a resource "([^"]*)" containing:$`, s.resource)
	ctx.Step(`^the parameter "([^"]*)" is "([^"]*)"$`, s.parameter)
	ctx.Step(`^I transform "([^"]*)" with "([^"]*)"$`, s.transform)
	ctx.Step(`^I process "([^"]*)"$`, s.process)
	ctx.Step(`^the output is "([^"]*)"$`, s.outputIs)
	ctx.Step(`^the output is:$`, s.outputIsDoc)
	ctx.Step(`^the passthrough document has root "([^"]*)"$`, s.passthroughRoot)
	ctx.Step(`^the driver state is "([^"]*)"$`, s.driverState)
	ctx.Step(`^it fails with "([^"]*)"$`, s.failsWith)
	ctx.Step(`^it succeeds$`, s.succeeds)
}

func memoryURL(name string) string {
	return "mem:///" + name
}

func (s *scenarioState) resource(name string, doc *godog.DocString) error {
	s.files[memoryURL(name)] = doc.Content
	return nil
}

func (s *scenarioState) parameter(name, value string) error {
	s.params[name] = value
	return nil
}

func (s *scenarioState) transform(doc, sheet string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc := xslt.NewProcessor(s.files)
	src, err := proc.Load(ctx, memoryURL(doc))
	if err != nil {
		return err
	}
	compiled, err := proc.Compile(ctx, memoryURL(sheet))
	if err != nil {
		s.err = err
		return nil
	}
	s.err = compiled.Transform(ctx, src, s.params, &s.out)
	return nil
}

func (s *scenarioState) process(doc string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lp := loop.New()
	defer lp.Close()
	mgr := resource.NewManager(ctx, lp, s.files)
	defer mgr.Close()

	opts := xslt.Options{
		Loader: mgr,
		Params: xslt.StringParams(s.params),
	}
	s.pass = xml.NewBuilder()

	drv := xslt.NewDriver(lp, opts)
	drv.SetPassthrough(s.pass)
	drv.SetOutput(xslt.WriterOutput(&s.out))
	if st := mgr.LoadResource(resource.KindDocument, memoryURL(doc), drv); st != resource.StatusAccepted {
		return fmt.Errorf("%s: load %s", doc, st)
	}
	if err := lp.Run(ctx); err != nil {
		return err
	}
	s.state = drv.State()
	s.err = drv.Err()
	return nil
}

func (s *scenarioState) outputIs(want string) error {
	if got := strings.TrimSpace(s.out.String()); got != want {
		return fmt.Errorf("output mismatched: want %q, got %q", want, got)
	}
	return nil
}

func (s *scenarioState) outputIsDoc(doc *godog.DocString) error {
	want := normalizeDoc([]byte(doc.Content))
	if got := normalizeDoc(s.out.Bytes()); got != want {
		return fmt.Errorf("output mismatched: want %q, got %q", want, got)
	}
	return nil
}

func (s *scenarioState) passthroughRoot(name string) error {
	if s.pass == nil || s.pass.Document() == nil {
		return fmt.Errorf("no passthrough document")
	}
	root := s.pass.Document().Root()
	if root == nil || root.LocalName() != name {
		return fmt.Errorf("passthrough root mismatched: want %s", name)
	}
	return nil
}

func (s *scenarioState) driverState(want string) error {
	if got := s.state.String(); got != want {
		return fmt.Errorf("driver state mismatched: want %s, got %s (%v)", want, got, s.err)
	}
	return nil
}

func (s *scenarioState) failsWith(text string) error {
	if s.err == nil {
		return fmt.Errorf("error expected")
	}
	if !strings.Contains(s.err.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", s.err, text)
	}
	return nil
}

func (s *scenarioState) succeeds() error {
	return s.err
}
