package manifest

// Dialect identifies which manifest format a document is written in.
type Dialect string

const (
	DialectUnknown Dialect = "unknown"
	// DialectLegacy is a Poetry manifest: [tool.poetry] without [project].
	DialectLegacy Dialect = "legacy"
	// DialectTarget is a PEP 621 manifest with a [project] table.
	DialectTarget Dialect = "target"
)

// DetectDialect classifies doc. A [project] table wins over [tool.poetry]
// because Poetry 2 projects may carry both.
func DetectDialect(doc *Document) Dialect {
	switch {
	case doc.Table("project") != nil:
		return DialectTarget
	case doc.Table("tool", "poetry") != nil:
		return DialectLegacy
	default:
		return DialectUnknown
	}
}
