package xslt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type compileFunc func(*compiler, Handle, *Construct) error

var compilers map[ElementType]compileFunc

func init() {
	unexpected := func(cp *compiler, h Handle, _ *Construct) error {
		return cp.fail(h, ErrUnexpected)
	}
	compilers = map[ElementType]compileFunc{
		ElemApplyImports:          compileApplyImports,
		ElemApplyTemplates:        compileApplyTemplates,
		ElemAttribute:             compileAttribute,
		ElemCallTemplate:          compileCallTemplate,
		ElemChoose:                compileChoose,
		ElemComment:               compileComment,
		ElemCopy:                  compileCopy,
		ElemCopyOf:                compileCopyOf,
		ElemElement:               compileElement,
		ElemFallback:              compileFallback,
		ElemForEach:               compileForEach,
		ElemIf:                    compileIf,
		ElemMessage:               compileMessage,
		ElemNumber:                compileNumber,
		ElemProcessingInstruction: compileProcessingInstruction,
		ElemText:                  compileText,
		ElemValueOf:               compileValueOf,
		ElemVariable:              compileVariable,
		ElemParam:                 unexpected,
		ElemSort:                  unexpected,
		ElemWithParam:             unexpected,
		ElemWhen:                  unexpected,
		ElemOtherwise:             unexpected,
	}
}

type compiler struct {
	sheet  *Stylesheet
	prog   *Program
	imp    *Import
	locals environ.Environ[Handle]
}

func (s *Stylesheet) newCompiler(name string, imp *Import) *compiler {
	prog := Program{
		Name: name,
	}
	if imp != nil {
		prog.BaseURL = imp.URL
	}
	return &compiler{
		sheet:  s,
		prog:   &prog,
		imp:    imp,
		locals: environ.Empty[Handle](),
	}
}

func (s *Stylesheet) compileTemplate(t *Template) (*Program, error) {
	cp := s.newCompiler(t.String(), t.Import)
	if err := cp.body(t.Handle); err != nil {
		return nil, err
	}
	return cp.prog, nil
}

func (s *Stylesheet) compileGlobal(v *Variable) (*Program, error) {
	cp := s.newCompiler(v.String(), v.Import)
	c := s.arena.Get(v.Handle)
	if err := cp.sequence(c.Children, false); err != nil {
		return nil, err
	}
	return cp.prog, nil
}

// compileAttributeSet compiles an xsl:attribute-set while its construct
// still exists.
func (s *Stylesheet) compileAttributeSet(h Handle, set *AttributeSet) (*Program, error) {
	cp := s.newCompiler(fmt.Sprintf("attribute-set(%s)", set.Name.QualifiedName()), set.Import)
	c := s.arena.Get(h)
	if len(set.Uses) > 0 {
		cp.prog.sets = append(cp.prog.sets, set.Uses)
		cp.emit(OpUseAttributeSets, len(cp.prog.sets)-1, 0, h, c)
	}
	for _, ch := range c.Children {
		child := s.arena.Get(ch)
		if child.Type != ElemAttribute {
			return nil, cp.fail(ch, ErrUnexpected)
		}
		if err := compileAttribute(cp, ch, child); err != nil {
			return nil, err
		}
	}
	return cp.prog, nil
}

func (cp *compiler) sub(name string) *compiler {
	sub := cp.sheet.newCompiler(name, cp.imp)
	sub.locals = environ.Enclosed(cp.locals)
	return sub
}

func (cp *compiler) get(h Handle) *Construct {
	return cp.sheet.arena.Get(h)
}

func (cp *compiler) fail(h Handle, err error) error {
	var url string
	if cp.imp != nil {
		url = cp.imp.URL
	}
	return constructError(url, cp.sheet.arena.Path(h), err)
}

func (cp *compiler) emit(op Opcode, a, b int, h Handle, c *Construct) int {
	info := instrInfo{
		label: cp.sheet.arena.Path(h),
	}
	if c != nil {
		info.ns = c.NS
	}
	return cp.prog.emit(op, a, b, info)
}

// body compiles the content of a template: its parameters first, then the
// sequence of instructions.
func (cp *compiler) body(h Handle) error {
	c := cp.get(h)
	var (
		rest   = c.Children
		params = true
	)
	for i, ch := range c.Children {
		child := cp.get(ch)
		if child.Type != ElemParam {
			if child.Kind != KindText || !xml.IsBlank(child.Text) {
				params = false
			}
			if params {
				continue
			}
			rest = c.Children[i:]
			break
		}
		if !params {
			return cp.fail(ch, ErrUnexpected)
		}
		if err := cp.binding(ch, child, bindParam); err != nil {
			return err
		}
		rest = c.Children[i+1:]
	}
	return cp.sequence(rest, false)
}

func (cp *compiler) declares(list []Handle) bool {
	return slices.ContainsFunc(list, func(h Handle) bool {
		return cp.get(h).Type == ElemVariable
	})
}

// sequence compiles a list of instructions. With scoped set, the variables
// it declares are not visible once the sequence is over.
func (cp *compiler) sequence(list []Handle, scoped bool) error {
	scoped = scoped && cp.declares(list)
	if scoped {
		cp.prog.emit(OpEnterScope, 0, 0, instrInfo{})
		locals := cp.locals
		cp.locals = environ.Enclosed(locals)
		defer func() {
			cp.locals = locals
		}()
	}
	for _, h := range list {
		if err := cp.instruction(h); err != nil {
			return err
		}
	}
	if scoped {
		cp.prog.emit(OpLeaveScope, 0, 0, instrInfo{})
	}
	return nil
}

func (cp *compiler) instruction(h Handle) error {
	c := cp.get(h)
	switch {
	case c.Kind == KindText:
		cp.emit(OpText, cp.prog.addString(c.Text), 0, h, c)
		return nil
	case c.Type == ElemLiteral && slices.Contains(c.Extensions, c.Name.Uri):
		return compileUnknown(cp, h, c)
	case c.Type == ElemLiteral:
		return compileLiteral(cp, h, c)
	case c.Type == ElemUnknown:
		return compileUnknown(cp, h, c)
	}
	fn, ok := compilers[c.Type]
	if !ok {
		return cp.fail(h, ErrUnexpected)
	}
	return fn(cp, h, c)
}

func (cp *compiler) query(h Handle, c *Construct, attr AttributeType) (*xpath.Query, error) {
	str, ok := c.Attr(attr)
	if !ok {
		return nil, nil
	}
	q, err := xpath.Compile(str, c.NS)
	if err != nil {
		return nil, cp.fail(h, fmt.Errorf("%s: %w", attr, err))
	}
	return q, nil
}

func (cp *compiler) avt(h Handle, c *Construct, attr AttributeType) (*AVT, error) {
	str, ok := c.Attr(attr)
	if !ok {
		return nil, nil
	}
	a, err := compileAVT(str, c.NS)
	if err != nil {
		return nil, cp.fail(h, fmt.Errorf("%s: %w", attr, err))
	}
	return a, nil
}

func (cp *compiler) yesNo(h Handle, c *Construct, attr AttributeType) (bool, error) {
	i := slices.IndexFunc(c.Attrs, func(a Attr) bool {
		return a.Type == attr
	})
	if i < 0 {
		return false, nil
	}
	v, err := parseYesNo(c.Attrs[i])
	if err != nil {
		return false, cp.fail(h, err)
	}
	return v, nil
}

func (cp *compiler) attributeSets(h Handle, c *Construct, attr AttributeType) error {
	str, ok := c.Attr(attr)
	if !ok {
		return nil
	}
	names, err := resolveNames(str, c.NS)
	if err != nil {
		return cp.fail(h, err)
	}
	if cp.sheet.done {
		for _, n := range names {
			if _, err := cp.sheet.AttributeSets(n); err != nil {
				return cp.fail(h, err)
			}
		}
	}
	if len(names) == 0 {
		return nil
	}
	cp.prog.sets = append(cp.prog.sets, names)
	cp.emit(OpUseAttributeSets, len(cp.prog.sets)-1, 0, h, c)
	return nil
}

// binding compiles xsl:variable, xsl:param and xsl:with-param.
func (cp *compiler) binding(h Handle, c *Construct, kind bindKind) error {
	str, _ := c.Attr(AttrName)
	name, err := c.NS.ResolveName(str)
	if err != nil {
		return cp.fail(h, fmt.Errorf("name: %w", err))
	}
	q, err := cp.query(h, c, AttrSelect)
	if err != nil {
		return err
	}
	if q != nil && len(c.Children) > 0 {
		return cp.fail(h, fmt.Errorf("select and content: %w", ErrInvalidValue))
	}
	if kind != bindWithParam {
		if _, err := cp.locals.Resolve(name); err == nil {
			return cp.fail(h, fmt.Errorf("%s: %w", name.QualifiedName(), ErrShadowed))
		}
	}
	idx := cp.prog.addBinding(binding{
		name:  name,
		query: q,
		kind:  kind,
	})
	var at int
	if kind == bindParam {
		at = cp.emit(OpParam, idx, 0, h, c)
	}
	if q != nil || len(c.Children) == 0 {
		cp.emit(OpVariable, idx, 0, h, c)
	} else {
		cp.emit(OpStartFragment, 0, 0, h, c)
		if err := cp.sequence(c.Children, true); err != nil {
			return err
		}
		cp.emit(OpEndFragment, idx, 0, h, c)
	}
	if kind == bindParam {
		cp.prog.patch(at, idx, cp.prog.here())
	}
	if kind != bindWithParam {
		cp.locals.Define(name, h)
	}
	return nil
}

func (cp *compiler) sortKey(h Handle, c *Construct) (sortKey, error) {
	var (
		key sortKey
		err error
	)
	if key.selector, err = cp.query(h, c, AttrSelect); err != nil {
		return key, err
	}
	if key.selector == nil {
		key.selector, _ = xpath.Compile(".", nil)
	}
	if key.order, err = cp.avt(h, c, AttrOrder); err != nil {
		return key, err
	}
	if key.lang, err = cp.avt(h, c, AttrLang); err != nil {
		return key, err
	}
	if key.dataType, err = cp.avt(h, c, AttrDataType); err != nil {
		return key, err
	}
	if key.caseOrder, err = cp.avt(h, c, AttrCaseOrder); err != nil {
		return key, err
	}
	return key, nil
}

func compileUnknown(cp *compiler, h Handle, c *Construct) error {
	var fallback bool
	for _, ch := range c.Children {
		child := cp.get(ch)
		if child.Type != ElemFallback {
			continue
		}
		fallback = true
		if err := cp.sequence(child.Children, true); err != nil {
			return err
		}
	}
	if fallback {
		return nil
	}
	extension := slices.Contains(c.Extensions, c.Name.Uri)
	if !extension && (cp.imp == nil || !cp.imp.ForwardCompatible) {
		return cp.fail(h, fmt.Errorf("%s: %w", c.Name.QualifiedName(), ErrUnsupported))
	}
	msg := fmt.Sprintf("%s: %s", c.Name.QualifiedName(), ErrUnsupported)
	cp.emit(OpFail, cp.prog.addString(msg), 0, h, c)
	return nil
}

func compileFallback(_ *compiler, _ Handle, _ *Construct) error {
	return nil
}

func compileLiteral(cp *compiler, h Handle, c *Construct) error {
	li := literalElement{
		name: cp.sheet.aliases.Rename(c.Name),
	}
	for _, ns := range c.NS.InScope() {
		if ns.Uri == xsltNamespaceUri || slices.Contains(c.Excluded, ns.Uri) || slices.Contains(c.Extensions, ns.Uri) {
			continue
		}
		li.namespaces = append(li.namespaces, cp.sheet.aliases.RenameNS(ns))
	}
	for _, a := range c.Attrs {
		if a.Type != AttrUnknown && a.Type != AttrXmlSpace {
			continue
		}
		avt, err := compileAVT(a.Value, c.NS)
		if err != nil {
			return cp.fail(h, fmt.Errorf("%s: %w", a.Name.QualifiedName(), err))
		}
		name := a.Name
		if name.Uri != "" {
			name = cp.sheet.aliases.Rename(name)
		}
		li.attrs = append(li.attrs, literalAttr{
			name:  name,
			value: avt,
		})
	}
	cp.prog.literals = append(cp.prog.literals, li)
	idx := len(cp.prog.literals) - 1

	cp.emit(OpLiteralElement, idx, 0, h, c)
	if err := cp.attributeSets(h, c, AttrUseAttributeSets); err != nil {
		return err
	}
	if len(li.attrs) > 0 {
		cp.emit(OpAttributes, idx, 0, h, c)
	}
	if err := cp.sequence(c.Children, true); err != nil {
		return err
	}
	cp.emit(OpEndElement, 0, 0, h, c)
	return nil
}

func compileText(cp *compiler, h Handle, c *Construct) error {
	var str strings.Builder
	for _, ch := range c.Children {
		child := cp.get(ch)
		if child.Kind != KindText {
			return cp.fail(ch, ErrUnexpected)
		}
		str.WriteString(child.Text)
	}
	raw, err := cp.yesNo(h, c, AttrDisableOutputEscaping)
	if err != nil {
		return err
	}
	if str.Len() == 0 {
		return nil
	}
	cp.emit(OpText, cp.prog.addString(str.String()), boolInt(raw), h, c)
	return nil
}

func compileValueOf(cp *compiler, h Handle, c *Construct) error {
	q, err := cp.query(h, c, AttrSelect)
	if err != nil {
		return err
	}
	raw, err := cp.yesNo(h, c, AttrDisableOutputEscaping)
	if err != nil {
		return err
	}
	cp.emit(OpValueOf, cp.prog.addQuery(q), boolInt(raw), h, c)
	return nil
}

func compileCopyOf(cp *compiler, h Handle, c *Construct) error {
	q, err := cp.query(h, c, AttrSelect)
	if err != nil {
		return err
	}
	cp.emit(OpCopyOf, cp.prog.addQuery(q), 0, h, c)
	return nil
}

func compileIf(cp *compiler, h Handle, c *Construct) error {
	q, err := cp.query(h, c, AttrTest)
	if err != nil {
		return err
	}
	qi := cp.prog.addQuery(q)
	at := cp.emit(OpTest, qi, 0, h, c)
	if err := cp.sequence(c.Children, true); err != nil {
		return err
	}
	cp.prog.patch(at, qi, cp.prog.here())
	return nil
}

func compileChoose(cp *compiler, h Handle, c *Construct) error {
	var (
		jumps     []int
		otherwise bool
	)
	for _, ch := range c.Children {
		child := cp.get(ch)
		switch child.Type {
		case ElemWhen:
			if otherwise {
				return cp.fail(ch, ErrUnexpected)
			}
			q, err := cp.query(ch, child, AttrTest)
			if err != nil {
				return err
			}
			qi := cp.prog.addQuery(q)
			at := cp.emit(OpTest, qi, 0, ch, child)
			if err := cp.sequence(child.Children, true); err != nil {
				return err
			}
			jumps = append(jumps, cp.emit(OpJump, 0, 0, ch, child))
			cp.prog.patch(at, qi, cp.prog.here())
		case ElemOtherwise:
			if otherwise || len(jumps) == 0 {
				return cp.fail(ch, ErrUnexpected)
			}
			otherwise = true
			if err := cp.sequence(child.Children, true); err != nil {
				return err
			}
		default:
			return cp.fail(ch, ErrUnexpected)
		}
	}
	if len(jumps) == 0 {
		return cp.fail(h, fmt.Errorf("xsl:when: %w", ErrMissingAttr))
	}
	end := cp.prog.here()
	for _, j := range jumps {
		cp.prog.patch(j, end, 0)
	}
	return nil
}

// sorts splits the leading xsl:sort children from the rest of the content.
func (cp *compiler) sorts(c *Construct) ([]sortKey, []Handle, error) {
	var keys []sortKey
	for i, ch := range c.Children {
		child := cp.get(ch)
		if child.Type != ElemSort {
			rest := c.Children[i:]
			for _, r := range rest {
				if cp.get(r).Type == ElemSort {
					return nil, nil, cp.fail(r, ErrUnexpected)
				}
			}
			return keys, rest, nil
		}
		k, err := cp.sortKey(ch, child)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil, nil
}

func compileForEach(cp *compiler, h Handle, c *Construct) error {
	q, err := cp.query(h, c, AttrSelect)
	if err != nil {
		return err
	}
	keys, rest, err := cp.sorts(c)
	if err != nil {
		return err
	}
	body := cp.sub("for-each(" + q.String() + ")")
	if err := body.sequence(rest, false); err != nil {
		return err
	}
	it := iteration{
		selector: q,
		sorts:    keys,
		body:     body.prog,
	}
	cp.emit(OpForEach, cp.prog.addIteration(it), 0, h, c)
	return nil
}

// params compiles the xsl:with-param children of a call, the other
// children being given to other.
func (cp *compiler) params(c *Construct, other func(Handle, *Construct) error) (bool, error) {
	var with []Handle
	for _, ch := range c.Children {
		child := cp.get(ch)
		switch {
		case child.Type == ElemWithParam:
			with = append(with, ch)
		case other != nil:
			if err := other(ch, child); err != nil {
				return false, err
			}
		default:
			return false, cp.fail(ch, ErrUnexpected)
		}
	}
	if len(with) == 0 {
		return false, nil
	}
	seen := make(map[string]struct{})
	cp.prog.emit(OpStartParams, 0, 0, instrInfo{})
	for _, ch := range with {
		child := cp.get(ch)
		name, _ := child.Attr(AttrName)
		if _, ok := seen[name]; ok {
			return false, cp.fail(ch, fmt.Errorf("%s given twice: %w", name, ErrInvalidValue))
		}
		seen[name] = struct{}{}
		if err := cp.binding(ch, child, bindWithParam); err != nil {
			return false, err
		}
	}
	return true, nil
}

func compileApplyTemplates(cp *compiler, h Handle, c *Construct) error {
	q, err := cp.query(h, c, AttrSelect)
	if err != nil {
		return err
	}
	it := iteration{
		selector: q,
	}
	if str, ok := c.Attr(AttrMode); ok {
		if it.mode, err = c.NS.ResolveName(str); err != nil {
			return cp.fail(h, fmt.Errorf("mode: %w", err))
		}
	}
	withParams, err := cp.params(c, func(ch Handle, child *Construct) error {
		if child.Type != ElemSort {
			return cp.fail(ch, ErrUnexpected)
		}
		k, err := cp.sortKey(ch, child)
		if err == nil {
			it.sorts = append(it.sorts, k)
		}
		return err
	})
	if err != nil {
		return err
	}
	cp.emit(OpApplyTemplates, cp.prog.addIteration(it), boolInt(withParams), h, c)
	return nil
}

func compileApplyImports(cp *compiler, h Handle, c *Construct) error {
	if len(c.Children) > 0 {
		return cp.fail(c.Children[0], ErrUnexpected)
	}
	cp.emit(OpApplyImports, 0, 0, h, c)
	return nil
}

func compileCallTemplate(cp *compiler, h Handle, c *Construct) error {
	str, _ := c.Attr(AttrName)
	name, err := c.NS.ResolveName(str)
	if err != nil {
		return cp.fail(h, fmt.Errorf("name: %w", err))
	}
	slot := len(cp.prog.templates)
	cp.prog.templates = append(cp.prog.templates, nil)
	if cp.sheet.done {
		t, err := cp.sheet.NamedTemplate(name)
		if err != nil {
			return cp.fail(h, err)
		}
		cp.prog.templates[slot] = t
	} else {
		var url string
		if cp.imp != nil {
			url = cp.imp.URL
		}
		cp.sheet.fixups = append(cp.sheet.fixups, fixup{
			prog: cp.prog,
			slot: slot,
			name: name,
			url:  url,
			path: cp.sheet.arena.Path(h),
		})
	}
	withParams, err := cp.params(c, nil)
	if err != nil {
		return err
	}
	cp.emit(OpCallTemplate, slot, boolInt(withParams), h, c)
	return nil
}

func compileVariable(cp *compiler, h Handle, c *Construct) error {
	return cp.binding(h, c, bindVariable)
}

func (cp *compiler) computedName(h Handle, c *Construct, element bool) (int, error) {
	name, err := cp.avt(h, c, AttrName)
	if err != nil {
		return 0, err
	}
	namespace, err := cp.avt(h, c, AttrNamespace)
	if err != nil {
		return 0, err
	}
	if str, ok := name.Literal(); ok {
		qn, err := xml.ParseName(str)
		if err != nil {
			return 0, cp.fail(h, fmt.Errorf("%s: %w", str, ErrInvalidName))
		}
		if _, ok := c.NS.ResolvePrefix(qn.Space); !ok && namespace == nil {
			return 0, cp.fail(h, fmt.Errorf("%s: %w", str, ErrUndeclaredPrefix))
		}
	}
	cp.prog.names = append(cp.prog.names, computedName{
		name:      name,
		namespace: namespace,
		ns:        c.NS,
		element:   element,
	})
	return len(cp.prog.names) - 1, nil
}

func compileElement(cp *compiler, h Handle, c *Construct) error {
	idx, err := cp.computedName(h, c, true)
	if err != nil {
		return err
	}
	cp.emit(OpElement, idx, 0, h, c)
	if err := cp.attributeSets(h, c, AttrUseAttributeSets); err != nil {
		return err
	}
	if err := cp.sequence(c.Children, true); err != nil {
		return err
	}
	cp.emit(OpEndElement, 0, 0, h, c)
	return nil
}

func compileAttribute(cp *compiler, h Handle, c *Construct) error {
	idx, err := cp.computedName(h, c, false)
	if err != nil {
		return err
	}
	cp.emit(OpStartCollect, 0, 0, h, c)
	if err := cp.sequence(c.Children, true); err != nil {
		return err
	}
	cp.emit(OpAttribute, idx, 0, h, c)
	return nil
}

func compileComment(cp *compiler, h Handle, c *Construct) error {
	cp.emit(OpStartCollect, 0, 0, h, c)
	if err := cp.sequence(c.Children, true); err != nil {
		return err
	}
	cp.emit(OpComment, 0, 0, h, c)
	return nil
}

func compileProcessingInstruction(cp *compiler, h Handle, c *Construct) error {
	name, err := cp.avt(h, c, AttrName)
	if err != nil {
		return err
	}
	cp.emit(OpStartCollect, 0, 0, h, c)
	if err := cp.sequence(c.Children, true); err != nil {
		return err
	}
	cp.emit(OpProcessingInstruction, cp.prog.addAVT(name), 0, h, c)
	return nil
}

func compileMessage(cp *compiler, h Handle, c *Construct) error {
	terminate, err := cp.yesNo(h, c, AttrTerminate)
	if err != nil {
		return err
	}
	cp.emit(OpStartCollect, 0, 0, h, c)
	if err := cp.sequence(c.Children, true); err != nil {
		return err
	}
	cp.emit(OpMessage, 0, boolInt(terminate), h, c)
	return nil
}

func compileCopy(cp *compiler, h Handle, c *Construct) error {
	at := cp.emit(OpCopy, 0, 0, h, c)
	if err := cp.attributeSets(h, c, AttrUseAttributeSets); err != nil {
		return err
	}
	if err := cp.sequence(c.Children, true); err != nil {
		return err
	}
	cp.emit(OpEndCopy, 0, 0, h, c)
	cp.prog.patch(at, cp.prog.here(), 0)
	return nil
}

func compileNumber(cp *compiler, h Handle, c *Construct) error {
	var (
		spec = numberSpec{
			level: "single",
		}
		err error
	)
	if str, ok := c.Attr(AttrLevel); ok {
		switch str {
		case "single", "multiple", "any":
			spec.level = str
		default:
			return cp.fail(h, invalidValue("level", str))
		}
	}
	pattern := func(attr AttributeType) (*xpath.Pattern, error) {
		str, ok := c.Attr(attr)
		if !ok {
			return nil, nil
		}
		p, err := xpath.CompilePattern(str, c.NS)
		if err != nil {
			return nil, cp.fail(h, fmt.Errorf("%s: %w: %w", attr, ErrInvalidPattern, err))
		}
		return p, nil
	}
	if spec.count, err = pattern(AttrCount); err != nil {
		return err
	}
	if spec.from, err = pattern(AttrFrom); err != nil {
		return err
	}
	if spec.value, err = cp.query(h, c, AttrValue); err != nil {
		return err
	}
	if spec.format, err = cp.avt(h, c, AttrFormat); err != nil {
		return err
	}
	if spec.letterValue, err = cp.avt(h, c, AttrLetterValue); err != nil {
		return err
	}
	if spec.groupingSep, err = cp.avt(h, c, AttrGroupingSeparator); err != nil {
		return err
	}
	if spec.groupingSize, err = cp.avt(h, c, AttrGroupingSize); err != nil {
		return err
	}
	cp.prog.numbers = append(cp.prog.numbers, spec)
	cp.emit(OpNumber, len(cp.prog.numbers)-1, 0, h, c)
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
