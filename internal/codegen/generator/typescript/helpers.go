package typescript

import (
	"go/token"
	"strings"

	"github.com/machinery-rpc/machinery/internal/codegen/common"
)

func writeFileHeaderTS(fingerprint string) string { return common.FileHeader("//", fingerprint) }

// propertyKey renders a namespace segment as an object literal key,
// quoting it when it is not a plain identifier.
func propertyKey(name string) string {
	if token.IsIdentifier(name) && !strings.ContainsRune(name, '$') {
		return name
	}
	return common.QuoteTS(name)
}

func indent(depth int) string { return strings.Repeat("\t", depth) }
