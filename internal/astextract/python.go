package astextract

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor extracts public-API signatures from Python source via
// Tree-sitter, walking class_definition and function_definition nodes.
type PythonExtractor struct {
	parser *sitter.Parser
}

// NewPythonExtractor builds a PythonExtractor.
func NewPythonExtractor() *PythonExtractor {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &PythonExtractor{parser: parser}
}

func (p *PythonExtractor) SupportedExtensions() []string { return []string{".py", ".pyw"} }

func (p *PythonExtractor) Extract(path string, content []byte) ([]Signature, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	var sigs []Signature
	p.walk(tree.RootNode(), path, "", content, lines, &sigs)
	return sigs, nil
}

func (p *PythonExtractor) walk(node *sitter.Node, path, parent string, content []byte, lines []string, out *[]Signature) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			sig := p.signatureFor(child, path, parent, content, lines, KindType)
			if sig == nil {
				continue
			}
			*out = append(*out, *sig)
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(body, path, sig.Name, content, lines, out)
			}

		case "function_definition":
			sig := p.signatureFor(child, path, parent, content, lines, KindFunction)
			if sig != nil {
				*out = append(*out, *sig)
			}

		case "decorated_definition":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				inner := child.NamedChild(j)
				kind := KindFunction
				if inner.Type() == "class_definition" {
					kind = KindType
				} else if inner.Type() != "function_definition" {
					continue
				}
				sig := p.signatureFor(inner, path, parent, content, lines, kind)
				if sig == nil {
					continue
				}
				sig.StartLine = int(child.StartPoint().Row) + 1
				*out = append(*out, *sig)
				if kind == KindType {
					if body := inner.ChildByFieldName("body"); body != nil {
						p.walk(body, path, sig.Name, content, lines, out)
					}
				}
			}

		default:
			p.walk(child, path, parent, content, lines, out)
		}
	}
}

func (p *PythonExtractor) signatureFor(node *sitter.Node, path, parent string, content []byte, lines []string, kind Kind) *Signature {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1

	declLine := ""
	if startLine > 0 && startLine <= len(lines) {
		declLine = strings.TrimSpace(lines[startLine-1])
	}

	return &Signature{
		Name:       name,
		Kind:       kind,
		Signature:  declLine,
		File:       path,
		StartLine:  startLine,
		EndLine:    endLine,
		Parent:     parent,
		Visibility: visibilityForPython(name),
	}
}

// visibilityForPython applies Python's underscore-prefix convention: a
// leading underscore (single or dunder) marks a name private.
func visibilityForPython(name string) Visibility {
	if strings.HasPrefix(name, "_") {
		return VisibilityPrivate
	}
	return VisibilityPublic
}
