// SPDX-License-Identifier: Apache-2.0
package asm

import "github.com/alecthomas/participle/v2/lexer"

// VpasmLexer tokenizes the .vpasm block-assembly format: a flat text
// rendering of one or more scalar functions, one instruction per line,
// intended as a portable fixture format for exercising the packer without
// a full source-language front end.
var VpasmLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `;[^\n]*`, nil},
		{"Float", `[0-9]+\.[0-9]+`, nil},
		{"Integer", `-?[0-9]+`, nil},
		{"Percent", `%`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Punctuation", `[{}()\[\]:,=]`, nil},
		{"Newline", `[\n]+`, nil},
		{"Whitespace", `[ \t\r]+`, nil},
	},
})
