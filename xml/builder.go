package xml

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Builder is a TokenHandler collecting a token stream into a Document.
// Adjacent character data are merged into a single text node.
type Builder struct {
	doc   *Document
	info  *EntityInfo
	stack []*Element
	text  strings.Builder
	depth int

	// KeepComments controls whether comments are added to the tree.
	KeepComments bool
	// Fragment allows text outside of any element, as found in result tree
	// fragments.
	Fragment bool
}

func NewBuilder() *Builder {
	return &Builder{
		KeepComments: true,
	}
}

// BuildInto makes the builder populate doc instead of creating a new
// document at the start of the entity.
func BuildInto(doc *Document) *Builder {
	b := NewBuilder()
	b.doc = doc
	return b
}

func (b *Builder) Document() *Document {
	return b.doc
}

func (b *Builder) StartEntity(url string, info *EntityInfo, ref bool) error {
	b.depth++
	if b.depth > 1 {
		return nil
	}
	if b.doc == nil {
		b.doc = NewDocument(url)
	} else if b.doc.URL == "" {
		b.doc.URL = url
	}
	b.info = info
	return nil
}

func (b *Builder) StartElement(name QName, _ bool) (bool, error) {
	if err := b.flush(); err != nil {
		return false, err
	}
	el := NewElement(name)
	if err := b.append(el); err != nil {
		return false, err
	}
	b.stack = append(b.stack, el)
	return false, nil
}

func (b *Builder) AddAttribute(name QName, value string, _, id bool) error {
	el := b.current()
	if el == nil {
		return fmt.Errorf("%s: attribute outside of element", name.QualifiedName())
	}
	if name.Uri == NamespaceXMLNS {
		prefix := name.Name
		if name.Space == "" {
			prefix = ""
		}
		el.DeclareNS(NS{Prefix: prefix, Uri: value})
		return nil
	}
	a := NewAttribute(name, value)
	a.ID = id
	el.SetAttribute(a)
	return nil
}

func (b *Builder) StartContent() error {
	return nil
}

func (b *Builder) CharacterData(text string, _ bool) error {
	b.text.WriteString(text)
	return nil
}

func (b *Builder) ProcessingInstruction(target, data string) error {
	if err := b.flush(); err != nil {
		return err
	}
	return b.append(NewInstruction(target, data))
}

func (b *Builder) Comment(text string) error {
	if err := b.flush(); err != nil {
		return err
	}
	if !b.KeepComments {
		return nil
	}
	return b.append(NewComment(text))
}

func (b *Builder) EndElement() (bool, bool, error) {
	if err := b.flush(); err != nil {
		return false, false, err
	}
	if len(b.stack) == 0 {
		return false, false, fmt.Errorf("end element without start element")
	}
	b.stack = b.stack[:len(b.stack)-1]
	return false, false, nil
}

func (b *Builder) EndEntity() error {
	b.depth--
	if b.depth > 0 {
		return nil
	}
	if err := b.flush(); err != nil {
		return err
	}
	if b.doc == nil {
		return fmt.Errorf("end of entity without start")
	}
	if b.info != nil {
		b.doc.DocType = b.info.DocType
		b.doc.Version = b.info.Version
		b.doc.Encoding = b.info.Encoding
		b.doc.Standalone = b.info.Standalone
		for k, v := range b.info.Entities {
			b.doc.Entities[k] = v
		}
	}
	b.doc.Finish()
	return nil
}

func (b *Builder) current() *Element {
	if n := len(b.stack); n > 0 {
		return b.stack[n-1]
	}
	return nil
}

func (b *Builder) append(node Node) error {
	if el := b.current(); el != nil {
		el.Append(node)
		return nil
	}
	if b.doc == nil {
		b.doc = NewDocument("")
	}
	b.doc.Append(node)
	return nil
}

func (b *Builder) flush() error {
	if b.text.Len() == 0 {
		return nil
	}
	defer b.text.Reset()
	if b.current() == nil && !b.Fragment {
		return nil
	}
	return b.append(NewText(b.text.String()))
}

func ParseFile(file string) (*Document, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ParseReader(r, file)
}

func ParseString(str string) (*Document, error) {
	return ParseReader(strings.NewReader(str), "")
}

func ParseReader(r io.Reader, url string) (*Document, error) {
	var (
		b = NewBuilder()
		t = NewTokenizer(r, url)
	)
	if err := t.Run(b); err != nil {
		return nil, err
	}
	return b.Document(), nil
}
