package common

import "strings"

// reservedTS lists TypeScript reserved words and strict-mode identifiers
// that are valid Go parameter names.
var reservedTS = map[string]struct{}{
	"arguments": {}, "await": {}, "case": {}, "catch": {}, "class": {},
	"const": {}, "continue": {}, "debugger": {}, "default": {}, "delete": {},
	"do": {}, "else": {}, "enum": {}, "eval": {}, "export": {}, "extends": {},
	"false": {}, "finally": {}, "for": {}, "function": {}, "if": {},
	"implements": {}, "import": {}, "in": {}, "instanceof": {}, "interface": {},
	"let": {}, "new": {}, "null": {}, "package": {}, "private": {},
	"protected": {}, "public": {}, "return": {}, "static": {}, "super": {},
	"switch": {}, "this": {}, "throw": {}, "true": {}, "try": {}, "typeof": {},
	"var": {}, "void": {}, "while": {}, "with": {}, "yield": {},
}

// SanitizeLeadingDigit prefixes names that start with a digit with "Num"
// to keep identifiers valid in target languages.
func SanitizeLeadingDigit(name string) string {
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "Num" + name
	}
	return name
}

// SanitizeIdentTS makes a Go identifier usable as a TypeScript binding name.
// Reserved words get a trailing underscore.
func SanitizeIdentTS(name string) string {
	name = SanitizeLeadingDigit(name)
	if _, ok := reservedTS[name]; ok {
		return name + "_"
	}
	return name
}

// QuoteTS renders s as a double-quoted TypeScript string literal.
func QuoteTS(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			if r < 0x20 {
				b.WriteString(`\x`)
				b.WriteByte("0123456789abcdef"[r>>4])
				b.WriteByte("0123456789abcdef"[r&0xf])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
