// SPDX-License-Identifier: Apache-2.0
package asm

import (
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"
)

var vpasmParser = buildParser()

func buildParser() *participle.Parser[Program] {
	p, err := participle.Build[Program](
		participle.Lexer(VpasmLexer),
		participle.Elide("Whitespace", "Newline", "Comment"),
		participle.UseLookahead(2),
	)
	if err != nil {
		panic(errors.Wrap(err, "failed to build .vpasm parser"))
	}
	return p
}

// ParseFile reads and parses a .vpasm file.
func ParseFile(path string) (*Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return ParseSource(path, string(source))
}

// ParseSource parses .vpasm source text, sourceName is used only in error
// messages.
func ParseSource(sourceName, source string) (*Program, error) {
	return vpasmParser.ParseString(sourceName, source)
}
