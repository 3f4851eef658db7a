package common

import (
	"fmt"
	"strings"
)

// GeneratedMarker is the first line of every generated artifact. The Go
// form matches the convention recognised by go vet and gopls.
const GeneratedMarker = "Code generated by machinery. DO NOT EDIT."

// FileHeader returns the banner of a generated file as line comments using
// prefix, including the aggregate fingerprint both artifacts share.
func FileHeader(prefix, fingerprint string) string {
	version, err := GetVersion()
	if err != nil {
		version = Version
	}
	lines := []string{
		GeneratedMarker,
		fmt.Sprintf("machinery %s", version),
		fmt.Sprintf("fingerprint: %s", fingerprint),
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(prefix)
		b.WriteByte(' ')
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// Fingerprint extracts the fingerprint from a generated file's banner, or "".
func Fingerprint(src string) string {
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "fingerprint: "); i >= 0 && strings.HasPrefix(line, "//") {
			return strings.TrimSpace(line[i+len("fingerprint: "):])
		}
	}
	return ""
}
