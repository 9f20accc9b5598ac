package xslt

import (
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// evalEnv is the environment of the expressions of one frame: its local
// variables, then the top-level variables and parameters, then the
// extension functions.
type evalEnv struct {
	t *Transformation
	f *frame
}

func (e evalEnv) ResolveVariable(name xml.QName) (xpath.Sequence, error) {
	if e.f != nil && e.f.scope != nil {
		if seq, err := e.f.scope.ResolveVariable(name); err == nil {
			return seq, nil
		}
	}
	if v, ok := e.t.sheet.Global(name); ok {
		return e.t.global(v)
	}
	return nil, errorWithHint(name.QualifiedName(), ErrUnresolved, e.names())
}

func (e evalEnv) names() []string {
	list := e.t.sheet.globalNames()
	if e.f != nil && e.f.prog != nil {
		for _, b := range e.f.prog.bindings {
			if b.kind != bindWithParam {
				list = append(list, b.name.QualifiedName())
			}
		}
	}
	return list
}

func (e evalEnv) ResolveFunction(name xml.QName) (xpath.Function, bool) {
	var (
		ext extension
		ok  bool
	)
	switch name.Uri {
	case "":
		ext, ok = extensions[name.Name]
	case exsltCommonUri:
		ext, ok = exsltExtensions[name.Name]
	}
	if !ok {
		return xpath.Function{}, false
	}
	fn := xpath.Function{
		Min: ext.min,
		Max: ext.max,
		Call: func(ctx xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
			return ext.call(e, ctx, args)
		},
	}
	return fn, true
}

// namespaces gives the namespaces in scope for the instruction being run.
func (e evalEnv) namespaces() *nsContext {
	if e.f == nil || e.f.prog == nil {
		return nil
	}
	return e.f.prog.namespaces(e.f.pc)
}

func (e evalEnv) resolveName(str string) (xml.QName, error) {
	return e.namespaces().ResolveName(str)
}

func (e evalEnv) baseURL() string {
	if e.f == nil || e.f.prog == nil || e.f.prog.BaseURL == "" {
		return e.t.sheet.URL
	}
	return e.f.prog.BaseURL
}
