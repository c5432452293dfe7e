package any

import (
	"fmt"

	"github.com/orizon-lang/orizon-runtime/internal/metadata"
	"github.com/orizon-lang/orizon-runtime/internal/rtalloc"
)

// fatalCastError formats and reports the shared cast-error message (spec
// §4.5), used by both CheckedCast and UpdateField.
func fatalCastError(from, to *metadata.Type) {
	rtalloc.Fatal(fmt.Sprintf("checked cast failed: cannot convert %s to %s", from.Name, to.Name))
}
