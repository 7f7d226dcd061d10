// Package enumparse extracts tagged enum definitions from C++ headers.
//
// A tagged enum is wrapped in directive comments:
//
//	//:EnumBegin( BITFIELD )
//	enum EFlags
//	{
//		EF_NONE = 0,
//		EF_READ = 1 << 0,	//:EnumEntry( "Read" )
//	};
//	//:EnumEnd
//
// ScanHeader splits a header into blocks and Parser turns each block into an
// enumdb.EnumRecord using the tree-sitter C++ grammar.
package enumparse

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	beginRe = regexp.MustCompile(`^\s*//:\s*EnumBegin\s*\((.*)\)`)
	endRe   = regexp.MustCompile(`^\s*//:\s*EnumEnd\b`)
	entryRe = regexp.MustCompile(`//:\s*EnumEntry\s*\(\s*"([^"]*)"\s*\)`)
)

// ParseError reports a malformed directive or enum definition.
type ParseError struct {
	Path string
	Line int // 1-based
	Msg  string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Options are the settings given in an EnumBegin directive.
type Options struct {
	Bitfield bool
	Extends  string
}

// Block is the text between one EnumBegin and its EnumEnd, inclusive.
type Block struct {
	Path      string
	StartLine int // 1-based line of the EnumBegin directive
	Offset    int // byte offset of the EnumBegin line within the header
	Text      string
	Options   Options
	// OuterNamespace is the namespace enclosing the directive in the header.
	OuterNamespace string
}

// ScanHeader splits src into tagged enum blocks. Two consecutive EnumBegin
// directives, an EnumEnd without a matching EnumBegin, or an unterminated
// EnumBegin are errors.
func ScanHeader(path string, src []byte) ([]Block, error) {
	text := string(src)
	var (
		blocks  []Block
		current *Block
		offset  int
	)

	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		lineNo := i + 1
		switch {
		case beginRe.MatchString(line):
			if current != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Msg: "two consecutive EnumBegin directives"}
			}
			opts, err := parseOptions(beginRe.FindStringSubmatch(line)[1])
			if err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Msg: err.Error()}
			}
			current = &Block{Path: path, StartLine: lineNo, Offset: offset, Options: opts}
		case endRe.MatchString(line):
			if current == nil {
				return nil, &ParseError{Path: path, Line: lineNo, Msg: "EnumEnd without a matching EnumBegin"}
			}
			current.Text = text[current.Offset : offset+len(line)]
			blocks = append(blocks, *current)
			current = nil
		}
		offset += len(line)
	}

	if current != nil {
		return nil, &ParseError{Path: path, Line: current.StartLine, Msg: "enum reflection directive was not properly closed"}
	}

	if len(blocks) > 0 {
		outer, err := enclosingNamespaces(context.Background(), src, blocks)
		if err != nil {
			return nil, &ParseError{Path: path, Line: 1, Msg: err.Error()}
		}
		for i := range blocks {
			blocks[i].OuterNamespace = outer[i]
		}
	}
	return blocks, nil
}

// parseOptions reads the EnumBegin argument list, e.g. "BITFIELD",
// "extends BaseTest" or "EXTENDS(Game::BaseTest)".
func parseOptions(args string) (Options, error) {
	var opts Options
	fields := strings.FieldsFunc(args, func(r rune) bool {
		switch r {
		case ',', ' ', '\t', '(', ')':
			return true
		}
		return false
	})
	for i := 0; i < len(fields); i++ {
		switch strings.ToUpper(fields[i]) {
		case "BITFIELD":
			opts.Bitfield = true
		case "EXTENDS":
			if i+1 >= len(fields) {
				return Options{}, fmt.Errorf("extends option is missing a base enum name")
			}
			i++
			opts.Extends = fields[i]
		default:
			return Options{}, fmt.Errorf("unknown EnumBegin option %q", fields[i])
		}
	}
	return opts, nil
}

// entryNameFromComment returns the registration name in an EnumEntry comment.
func entryNameFromComment(comment string) (string, bool) {
	m := entryRe.FindStringSubmatch(comment)
	if m == nil {
		return "", false
	}
	return m[1], true
}
