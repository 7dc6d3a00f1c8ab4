package endpoint

import (
	"regexp"
	"strings"
	"time"

	"github.com/portway-io/portway/pkg/odata"
)

// Kind discriminates the endpoint variants.
type Kind string

const (
	KindSQL       Kind = "SQL"
	KindProxy     Kind = "Proxy"
	KindComposite Kind = "Composite"
	KindFile      Kind = "File"
	KindStatic    Kind = "Static"
)

// ObjectType classifies the database object behind a SQL endpoint.
type ObjectType string

const (
	ObjectTable               ObjectType = "Table"
	ObjectView                ObjectType = "View"
	ObjectStoredProcedure     ObjectType = "StoredProcedure"
	ObjectTableValuedFunction ObjectType = "TableValuedFunction"
)

// ConflictPolicy decides what a proxy endpoint does when an appended header
// is already present on the client request.
type ConflictPolicy string

const (
	ConflictSkip      ConflictPolicy = "Skip"
	ConflictOverwrite ConflictPolicy = "Overwrite"
	ConflictLogAndAdd ConflictPolicy = "LogAndAdd"
)

// Definition is one immutable endpoint record, produced by the descriptor
// loader and never mutated afterwards. Exactly one of the kind payloads is
// non-nil, matching Kind.
type Definition struct {
	// Name is unique within the namespace. Defaults to the directory name.
	Name string

	// Namespace is the directory path between the descriptor root and the
	// endpoint directory, empty for top-level endpoints.
	Namespace string

	// FullPath is Namespace/Name, or just Name for top-level endpoints.
	FullPath string

	Kind Kind

	// AllowedMethods lists the verbs the endpoint accepts. GET is always
	// implicitly allowed.
	AllowedMethods []string

	// IsPrivate excludes the endpoint from discovery documents.
	IsPrivate bool

	SQL       *SQLSpec
	Proxy     *ProxySpec
	Composite *CompositeSpec
	File      *FileSpec
	Static    *StaticSpec

	// Extra holds descriptor fields this build does not understand yet.
	// They are carried along untouched for forward compatibility.
	Extra map[string]any

	// Dir is the descriptor directory, used to resolve relative paths.
	Dir string
}

// AllowsMethod reports whether the verb is permitted on this endpoint.
// GET is always allowed; MERGE must be aliased to PATCH before the check.
func (d *Definition) AllowsMethod(method string) bool {
	method = strings.ToUpper(method)
	if method == "GET" {
		return true
	}
	for _, m := range d.AllowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// SQLSpec describes a SQL-backed endpoint.
type SQLSpec struct {
	Schema     string
	ObjectName string
	ObjectType ObjectType

	// Procedure overrides INSERT/DELETE with an EXEC call when set.
	Procedure string

	PrimaryKey string

	// AllowedColumns entries are "alias:db_column" or bare column names.
	AllowedColumns  []string
	RequiredColumns []string

	// ColumnValidation maps alias names to regex rules applied on writes.
	ColumnValidation map[string]ColumnRule

	// Parameters binds TVF or procedure arguments, in descriptor order.
	Parameters []Parameter

	columns *odata.ColumnMap
	rules   map[string]*regexp.Regexp
}

// Columns returns the alias to database column mapping.
func (s *SQLSpec) Columns() *odata.ColumnMap {
	return s.columns
}

// Rule returns the compiled validation regex and message for an alias.
func (s *SQLSpec) Rule(alias string) (*regexp.Regexp, string, bool) {
	re, ok := s.rules[alias]
	if !ok {
		return nil, "", false
	}
	return re, s.ColumnValidation[alias].Message, true
}

// ColumnRule is one write-validation rule from the descriptor.
type ColumnRule struct {
	Regex   string
	Message string
}

// Parameter sources.
const (
	SourcePath   = "path"
	SourceQuery  = "query"
	SourceHeader = "header"
)

// Parameter binds one TVF or procedure argument to a request location.
type Parameter struct {
	Name string

	// Source is one of path, query or header.
	Source string

	// Position is the 1-based path segment index when Source is path.
	Position int

	// Key is the query parameter or header name for the other sources.
	Key string

	SQLType  string
	Required bool

	// Default is used when the request omits the parameter. The literal
	// string "DEFAULT" makes the compiler emit the SQL DEFAULT keyword.
	Default string

	Pattern string

	pattern *regexp.Regexp
}

// Matches reports whether a raw value satisfies the parameter's pattern.
// Parameters without a pattern accept everything.
func (p *Parameter) Matches(raw string) bool {
	if p.pattern == nil {
		return true
	}
	return p.pattern.MatchString(raw)
}

// ProxySpec describes a forwarding endpoint.
type ProxySpec struct {
	// TargetURLTemplate may contain {env} plus trailing path segments.
	TargetURLTemplate string

	// MethodTranslation remaps inbound verbs, identity when absent.
	MethodTranslation map[string]string

	// HeaderAppend lists headers to add per original method. Values may
	// contain the {ORIGINAL_METHOD} and {TRANSLATED_METHOD} placeholders.
	HeaderAppend map[string][]HeaderValue

	// HeaderConflict decides what happens when an appended header already
	// exists on the request. Defaults to Skip.
	HeaderConflict ConflictPolicy

	columns *odata.ColumnMap
}

// Columns returns the alias map used to translate OData options on the
// forwarded query string, nil when the descriptor declares none.
func (p *ProxySpec) Columns() *odata.ColumnMap {
	return p.columns
}

// HeaderValue is one header to append on forwarded requests.
type HeaderValue struct {
	Key   string
	Value string
}

// TranslateMethod maps an inbound verb through MethodTranslation.
func (p *ProxySpec) TranslateMethod(method string) string {
	if p.MethodTranslation == nil {
		return method
	}
	for from, to := range p.MethodTranslation {
		if strings.EqualFold(from, method) {
			return strings.ToUpper(to)
		}
	}
	return method
}

// CompositeSpec describes a multi-step orchestration endpoint.
type CompositeSpec struct {
	Steps []Step

	// TopoOrder holds step names in a dependency-respecting order,
	// computed at load time. Cycles never reach this field.
	TopoOrder []string
}

// Step returns the step with the given name.
func (c *CompositeSpec) Step(name string) (*Step, bool) {
	for i := range c.Steps {
		if c.Steps[i].Name == name {
			return &c.Steps[i], true
		}
	}
	return nil, false
}

// Step is one node of a composite plan.
type Step struct {
	Name     string
	Endpoint string
	Method   string

	// IsArray fans the step out over each element of ArrayProperty in the
	// request body, binding the element as $item.
	IsArray       bool
	ArrayProperty string

	// SourceProperty narrows the forwarded body to one request property.
	SourceProperty string

	// TemplateBody is a JSON document with {{expr}} placeholders, embedded
	// either as a nested document or as a JSON string. Parsed once at load;
	// see Template.
	TemplateBody any

	DependsOn       []string
	ContinueOnError bool

	template any
}

// Template returns the parsed TemplateBody tree, nil when the step has none.
func (s *Step) Template() any {
	return s.template
}

// FileSpec describes an upload/download endpoint.
type FileSpec struct {
	// StorageRoot is the base directory; files live under
	// StorageRoot/<env>/<fileId>. Empty means the environment's root.
	StorageRoot string

	// AllowedExtensions is a lowercase allow-list including the dot,
	// e.g. ".pdf". Empty allows every extension.
	AllowedExtensions []string

	// MaxBytes caps the upload size. Zero means the server default.
	MaxBytes int64

	// MemoryOnly buffers uploads in memory instead of temp files.
	MemoryOnly bool
}

// AllowsExtension reports whether a filename passes the extension allow-list.
func (f *FileSpec) AllowsExtension(filename string) bool {
	if len(f.AllowedExtensions) == 0 {
		return true
	}
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(filename[idx:])
	for _, allowed := range f.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// StaticSpec describes a fixed-payload endpoint.
type StaticSpec struct {
	ContentType string

	// Path locates the payload file, relative to the descriptor directory
	// unless absolute.
	Path string

	// EnableFiltering applies OData options over top-level JSON arrays.
	EnableFiltering bool

	payload      []byte
	etag         string
	lastModified time.Time
}

// Payload returns the loaded payload bytes.
func (s *StaticSpec) Payload() []byte {
	return s.payload
}

// ETag returns the hex SHA-256 of the payload.
func (s *StaticSpec) ETag() string {
	return s.etag
}

// LastModified returns the payload file's modification time.
func (s *StaticSpec) LastModified() time.Time {
	return s.lastModified
}
