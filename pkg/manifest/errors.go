package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/pelletier/go-toml/v2/unstable"

	uperrors "github.com/matzehuels/cargo-upgrade/pkg/errors"
)

// ParseError describes a manifest that is not valid TOML.
//
// Line and Column are 1-based. Message is the TOML grammar's own
// expectation text; Snippet points a caret at the offending column:
//
//	  |
//	1 | This is clearly not a valid Cargo.toml.
//	  |      ^
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Snippet string
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("TOML parse error at line %d, column %d\n%s\n%s", e.Line, e.Column, e.Snippet, e.Message)
}

// wrapParseError nests pe the way every manifest parse failure is reported.
func wrapParseError(pe *ParseError) error {
	return uperrors.Wrap(uperrors.ErrCodeInvalidManifest,
		uperrors.Wrap(uperrors.ErrCodeInvalidManifest, pe, "Manifest not valid TOML"),
		"Unable to parse Cargo.toml")
}

// fromBurntSushi converts a decoder error into a ParseError.
// Errors that are not syntax errors (type mismatches) return nil.
func fromBurntSushi(path string, data []byte, err error) *ParseError {
	var te toml.ParseError
	if !errors.As(err, &te) {
		return nil
	}
	msg := te.Message
	if msg == "" {
		msg = te.Error()
		msg = strings.TrimPrefix(msg, fmt.Sprintf("toml: line %d (last key %q): ", te.Position.Line, te.LastKey))
		msg = strings.TrimPrefix(msg, fmt.Sprintf("toml: line %d: ", te.Position.Line))
	}
	line, col := position(data, te.Position.Line, te.Position.Start)
	return newParseError(path, data, line, col, msg)
}

// fromGoTOML converts a span parser error into a ParseError.
func fromGoTOML(path string, data []byte, p *unstable.Parser, err error) *ParseError {
	var pe *unstable.ParserError
	if !errors.As(err, &pe) {
		return newParseError(path, data, 1, 1, err.Error())
	}
	shape := p.Shape(p.Range(pe.Highlight))
	return newParseError(path, data, shape.Start.Line, shape.Start.Column, pe.Message)
}

// position derives a 1-based column from a byte offset. The line reported by
// the decoder is trusted; the column is recomputed in runes.
func position(data []byte, line, offset int) (int, int) {
	if offset > len(data) {
		offset = len(data)
	}
	if offset < 0 {
		offset = 0
	}
	start := bytes.LastIndexByte(data[:offset], '\n') + 1
	if line <= 0 {
		line = bytes.Count(data[:offset], []byte("\n")) + 1
	}
	return line, utf8.RuneCount(data[start:offset]) + 1
}

func newParseError(path string, data []byte, line, col int, msg string) *ParseError {
	return &ParseError{
		Path:    path,
		Line:    line,
		Column:  col,
		Snippet: snippet(data, line, col),
		Message: msg,
	}
}

func snippet(data []byte, line, col int) string {
	lines := strings.Split(string(data), "\n")
	text := ""
	if line >= 1 && line <= len(lines) {
		text = strings.TrimRight(lines[line-1], "\r")
	}
	num := strconv.Itoa(line)
	gutter := strings.Repeat(" ", len(num))
	caret := strings.Repeat(" ", max(col-1, 0)) + "^"

	var b strings.Builder
	fmt.Fprintf(&b, "%s |\n", gutter)
	fmt.Fprintf(&b, "%s | %s\n", num, text)
	fmt.Fprintf(&b, "%s | %s", gutter, caret)
	return b.String()
}

func invalidFormat(key, table, reason string) error {
	return uperrors.New(uperrors.ErrCodeInvalidDependencyFormat,
		"Invalid dependency format for %q in [%s]: %s", key, table, reason)
}
