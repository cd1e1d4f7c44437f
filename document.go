package yaml2lua

// Document represents a parsed YAML source file: the decoded value tree,
// pragmas found in leading comments, and metadata about the source file
type Document struct {
	// Where the document came from
	Metadata MetaData
	// Document-level pragmas controlling conversion output
	Pragmas Pragma
	// Root of the decoded value tree, always a sequence or mapping
	Root *Value
}

type MetaData struct {
	// The absolute source file path
	AbsSource string
}

type PragmaKey string

const (
	PragmaOutput PragmaKey = "output"
)

type Pragma struct {
	// The lua output file, relative to the source yaml file
	Output string
}
