package enumparse

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/papapumpkin/ccgtools/internal/enumdb"
)

// maxShift is the largest shift amount accepted in a "1 << N" value.
const maxShift = 31

// Parser converts enum blocks into records. The zero value is ready to use
// and safe for concurrent use; each call creates its own tree-sitter parser.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// ParseHeader scans src and parses every tagged enum it contains.
func (p *Parser) ParseHeader(ctx context.Context, path string, src []byte) ([]*enumdb.EnumRecord, error) {
	blocks, err := ScanHeader(path, src)
	if err != nil {
		return nil, err
	}
	records := make([]*enumdb.EnumRecord, 0, len(blocks))
	for _, b := range blocks {
		rec, err := p.Parse(ctx, b)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Parse turns one block into an EnumRecord. Entry values are recorded as
// written; computed values are bound later.
func (p *Parser) Parse(ctx context.Context, b Block) (*enumdb.EnumRecord, error) {
	src := []byte(b.Text)
	root, closeTree, err := parseCPP(ctx, src)
	if err != nil {
		return nil, &ParseError{Path: b.Path, Line: b.StartLine, Msg: err.Error()}
	}
	defer closeTree()

	if root.HasError() {
		return nil, &ParseError{Path: b.Path, Line: b.StartLine, Msg: "enum definition contains syntax errors"}
	}

	spec := findNode(root, func(n *sitter.Node) bool {
		return n.Type() == "enum_specifier" && n.ChildByFieldName("body") != nil
	})
	if spec == nil {
		return nil, &ParseError{Path: b.Path, Line: b.StartLine, Msg: "no enum definition found between EnumBegin and EnumEnd"}
	}
	nameNode := spec.ChildByFieldName("name")
	if nameNode == nil {
		return nil, &ParseError{Path: b.Path, Line: b.StartLine, Msg: "enum definition is missing a name"}
	}

	rec := &enumdb.EnumRecord{
		Name:        nameNode.Content(src),
		Namespace:   joinNamespace(b.OuterNamespace, namespaceOf(spec, src)),
		HeaderPath:  b.Path,
		Bitfield:    b.Options.Bitfield,
		ExtendsEnum: b.Options.Extends,
	}

	names := entryNamesByRow(root, src)
	body := spec.ChildByFieldName("body")
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() != "enumerator" {
			continue
		}
		line := b.StartLine + int(child.StartPoint().Row)
		entry, err := parseEnumerator(child, src)
		if err != nil {
			return nil, &ParseError{Path: b.Path, Line: line, Msg: err.Error()}
		}
		entry.EntryName = names[child.EndPoint().Row]
		if err := rec.AddEntry(entry); err != nil {
			return nil, &ParseError{Path: b.Path, Line: line, Msg: err.Error()}
		}
	}
	return rec, nil
}

func parseCPP(ctx context.Context, src []byte) (*sitter.Node, func(), error) {
	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		parser.Close()
		return nil, nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	return tree.RootNode(), func() {
		tree.Close()
		parser.Close()
	}, nil
}

func parseEnumerator(n *sitter.Node, src []byte) (enumdb.EnumEntry, error) {
	entry := enumdb.EnumEntry{CPPName: n.ChildByFieldName("name").Content(src)}
	value := n.ChildByFieldName("value")
	if value == nil {
		return entry, nil
	}
	return bindExpression(entry, value, src)
}

// bindExpression records the value of an enumerator initializer. Supported
// forms are integer literals, "1 << N" and references to another symbol.
func bindExpression(entry enumdb.EnumEntry, v *sitter.Node, src []byte) (enumdb.EnumEntry, error) {
	switch v.Type() {
	case "parenthesized_expression":
		if v.NamedChildCount() != 1 {
			return entry, fmt.Errorf("unsupported value for %s: %s", entry.CPPName, v.Content(src))
		}
		return bindExpression(entry, v.NamedChild(0), src)
	case "number_literal":
		n, err := parseInteger(v.Content(src))
		if err != nil {
			return entry, fmt.Errorf("value for %s: %w", entry.CPPName, err)
		}
		entry.Value, entry.HasValue = n, true
	case "binary_expression":
		n, err := parseShift(v, src)
		if err != nil {
			return entry, fmt.Errorf("value for %s: %w", entry.CPPName, err)
		}
		entry.Value, entry.HasValue = n, true
	case "identifier", "qualified_identifier":
		ref := v.Content(src)
		if idx := strings.LastIndex(ref, "::"); idx >= 0 {
			ref = ref[idx+2:]
		}
		entry.BoundName = strings.TrimSpace(ref)
	default:
		return entry, fmt.Errorf("unsupported value for %s: %s", entry.CPPName, v.Content(src))
	}
	return entry, nil
}

func parseShift(v *sitter.Node, src []byte) (uint64, error) {
	op := v.ChildByFieldName("operator")
	left, right := v.ChildByFieldName("left"), v.ChildByFieldName("right")
	if op == nil || op.Type() != "<<" || left == nil || right == nil ||
		left.Type() != "number_literal" || right.Type() != "number_literal" {
		return 0, fmt.Errorf("only \"1 << N\" expressions are supported, got %s", v.Content(src))
	}
	basis, err := parseInteger(left.Content(src))
	if err != nil {
		return 0, err
	}
	if basis != 1 {
		return 0, fmt.Errorf("left shift expression does not use 1 as the shift basis")
	}
	shift, err := parseInteger(right.Content(src))
	if err != nil {
		return 0, err
	}
	if shift > maxShift {
		return 0, fmt.Errorf("left shift amount %d is greater than %d", shift, maxShift)
	}
	return 1 << shift, nil
}

// parseInteger parses a C++ integer literal, ignoring width suffixes.
func parseInteger(lit string) (uint64, error) {
	lit = strings.TrimRight(lit, "uUlL")
	lit = strings.ReplaceAll(lit, "'", "")
	n, err := strconv.ParseUint(lit, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q", lit)
	}
	return n, nil
}

// entryNamesByRow maps a row to the registration name of an EnumEntry
// comment on that row.
func entryNamesByRow(root *sitter.Node, src []byte) map[uint32]string {
	out := make(map[uint32]string)
	walk(root, func(n *sitter.Node) {
		if n.Type() != "comment" {
			return
		}
		if name, ok := entryNameFromComment(n.Content(src)); ok {
			out[n.StartPoint().Row] = name
		}
	})
	return out
}

// namespaceOf returns the chain of namespaces enclosing n, outermost first.
func namespaceOf(n *sitter.Node, src []byte) string {
	var parts []string
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() != "namespace_definition" {
			continue
		}
		if name := p.ChildByFieldName("name"); name != nil {
			parts = append([]string{name.Content(src)}, parts...)
		}
	}
	return strings.Join(parts, "::")
}

// enclosingNamespaces computes the namespace surrounding each block's
// EnumBegin directive from a parse of the whole header.
func enclosingNamespaces(ctx context.Context, src []byte, blocks []Block) ([]string, error) {
	root, closeTree, err := parseCPP(ctx, src)
	if err != nil {
		return nil, err
	}
	defer closeTree()

	out := make([]string, len(blocks))
	for i, b := range blocks {
		var parts []string
		node := root
		for {
			next := namespaceContaining(node, uint32(b.Offset))
			if next == nil {
				break
			}
			if name := next.ChildByFieldName("name"); name != nil {
				parts = append(parts, name.Content(src))
			}
			node = next.ChildByFieldName("body")
			if node == nil {
				break
			}
		}
		out[i] = strings.Join(parts, "::")
	}
	return out, nil
}

// namespaceContaining returns the direct namespace_definition child of n
// whose body spans offset.
func namespaceContaining(n *sitter.Node, offset uint32) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "namespace_definition" {
			continue
		}
		body := c.ChildByFieldName("body")
		if body != nil && body.StartByte() < offset && offset < body.EndByte() {
			return c
		}
	}
	return nil
}

func joinNamespace(outer, inner string) string {
	switch {
	case outer == "":
		return inner
	case inner == "":
		return outer
	default:
		return outer + "::" + inner
	}
}

func findNode(n *sitter.Node, match func(*sitter.Node) bool) *sitter.Node {
	if match(n) {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := findNode(n.NamedChild(i), match); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *sitter.Node, fn func(*sitter.Node)) {
	fn(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}
