package xml

import (
	"fmt"
)

// Resumer is implemented by token sources able to continue delivering
// tokens after a handler asked them to block.
type Resumer interface {
	Resume()
}

// EntityInfo describes the resource delivering a token stream. It is filled
// while the prolog is read: fields may be updated after StartEntity.
type EntityInfo struct {
	Version    string
	Encoding   string
	Standalone string
	DocType    *DocType
	// Entities maps unparsed entity names to their system identifiers.
	Entities map[string]string
	Source   Resumer
}

// TokenHandler consumes the token stream of one or more xml entities.
type TokenHandler interface {
	StartEntity(url string, info *EntityInfo, ref bool) error
	// StartElement returns true when the subtree of the element must not be
	// delivered.
	StartElement(name QName, fragment bool) (bool, error)
	AddAttribute(name QName, value string, specified, id bool) error
	StartContent() error
	CharacterData(text string, blank bool) error
	ProcessingInstruction(target, data string) error
	Comment(text string) error
	// EndElement reports whether the source should suspend delivery (block)
	// or stop delivering tokens altogether (finished).
	EndElement() (bool, bool, error)
	EndEntity() error
}

type TokenKind int8

const (
	TokEntityStart TokenKind = iota
	TokElementStart
	TokAttribute
	TokContentStart
	TokCharData
	TokInstruction
	TokComment
	TokElementEnd
	TokEntityEnd
)

func (k TokenKind) String() string {
	switch k {
	case TokEntityStart:
		return "entity-start"
	case TokElementStart:
		return "element-start"
	case TokAttribute:
		return "attribute"
	case TokContentStart:
		return "content-start"
	case TokCharData:
		return "character-data"
	case TokInstruction:
		return "processing-instruction"
	case TokComment:
		return "comment"
	case TokElementEnd:
		return "element-end"
	case TokEntityEnd:
		return "entity-end"
	default:
		return "<unknown>"
	}
}

// Token records the full payload of one call made on a TokenHandler so that
// it can be replayed later.
type Token struct {
	Kind      TokenKind
	URL       string
	Info      *EntityInfo
	Ref       bool
	Name      QName
	Fragment  bool
	Value     string
	Target    string
	Specified bool
	ID        bool
	Blank     bool
}

func (t Token) String() string {
	switch t.Kind {
	case TokEntityStart:
		return fmt.Sprintf("%s(%s)", t.Kind, t.URL)
	case TokElementStart, TokAttribute:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Name.QualifiedName())
	case TokInstruction:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Target)
	default:
		return t.Kind.String()
	}
}

// Replayer delivers recorded tokens to a handler, skipping the subtree of
// elements the handler chose to ignore.
type Replayer struct {
	handler TokenHandler
	skip    int
}

func NewReplayer(h TokenHandler) *Replayer {
	return &Replayer{
		handler: h,
	}
}

func (r *Replayer) Replay(tok Token) error {
	if r.skip > 0 {
		switch tok.Kind {
		case TokElementStart:
			r.skip++
		case TokElementEnd:
			r.skip--
		}
		return nil
	}
	var err error
	switch tok.Kind {
	case TokEntityStart:
		err = r.handler.StartEntity(tok.URL, tok.Info, tok.Ref)
	case TokElementStart:
		var ignore bool
		ignore, err = r.handler.StartElement(tok.Name, tok.Fragment)
		if ignore {
			r.skip++
		}
	case TokAttribute:
		err = r.handler.AddAttribute(tok.Name, tok.Value, tok.Specified, tok.ID)
	case TokContentStart:
		err = r.handler.StartContent()
	case TokCharData:
		err = r.handler.CharacterData(tok.Value, tok.Blank)
	case TokInstruction:
		err = r.handler.ProcessingInstruction(tok.Target, tok.Value)
	case TokComment:
		err = r.handler.Comment(tok.Value)
	case TokElementEnd:
		_, _, err = r.handler.EndElement()
	case TokEntityEnd:
		err = r.handler.EndEntity()
	default:
		err = fmt.Errorf("%s: unknown token", tok.Kind)
	}
	return err
}

// Recorder is a TokenHandler storing every token it receives.
type Recorder struct {
	Tokens []Token
}

func (r *Recorder) StartEntity(url string, info *EntityInfo, ref bool) error {
	r.push(Token{Kind: TokEntityStart, URL: url, Info: info, Ref: ref})
	return nil
}

func (r *Recorder) StartElement(name QName, fragment bool) (bool, error) {
	r.push(Token{Kind: TokElementStart, Name: name, Fragment: fragment})
	return false, nil
}

func (r *Recorder) AddAttribute(name QName, value string, specified, id bool) error {
	r.push(Token{Kind: TokAttribute, Name: name, Value: value, Specified: specified, ID: id})
	return nil
}

func (r *Recorder) StartContent() error {
	r.push(Token{Kind: TokContentStart})
	return nil
}

func (r *Recorder) CharacterData(text string, blank bool) error {
	r.push(Token{Kind: TokCharData, Value: text, Blank: blank})
	return nil
}

func (r *Recorder) ProcessingInstruction(target, data string) error {
	r.push(Token{Kind: TokInstruction, Target: target, Value: data})
	return nil
}

func (r *Recorder) Comment(text string) error {
	r.push(Token{Kind: TokComment, Value: text})
	return nil
}

func (r *Recorder) EndElement() (bool, bool, error) {
	r.push(Token{Kind: TokElementEnd})
	return false, false, nil
}

func (r *Recorder) EndEntity() error {
	r.push(Token{Kind: TokEntityEnd})
	return nil
}

func (r *Recorder) push(tok Token) {
	r.Tokens = append(r.Tokens, tok)
}
