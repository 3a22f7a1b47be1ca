package stimulus

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// ScriptLexer tokenises stimulus scripts. Keywords are plain identifiers
// matched by the grammar.
var ScriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments run to end of line
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Durations must come before plain integers: 10ms, 1.5s, 1m30s
	{Name: "Duration", Pattern: `(?:[0-9]+(?:\.[0-9]+)?(?:ns|us|ms|s|m|h))+`},
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Int", Pattern: `[0-9]+`},

	// Pins before identifiers: PA0 .. PH15
	{Name: "Pin", Pattern: `P[A-H](?:1[0-5]|[0-9])\b`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},

	{Name: "LBracket", Pattern: `\[`},
	{Name: "RBracket", Pattern: `\]`},
})
