package endpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/portway-io/portway/pkg/odata"
)

// DescriptorFileName is the file that marks a directory as an endpoint.
const DescriptorFileName = "entity.json"

// descriptorFile is the flat on-disk shape of a descriptor. Field matching
// is case-insensitive, so "allowedColumns" and "AllowedColumns" both bind.
type descriptorFile struct {
	Name           string
	Kind           string
	AllowedMethods []string
	IsPrivate      bool

	// SQL
	Schema           string
	ObjectName       string
	ObjectType       string
	Procedure        string
	PrimaryKey       string
	AllowedColumns   []string
	RequiredColumns  []string
	ColumnValidation map[string]ColumnRule
	Parameters       []Parameter

	// Proxy
	TargetUrlTemplate string
	MethodTranslation map[string]string
	HeaderAppend      map[string][]HeaderValue
	HeaderConflict    string

	// Composite
	Steps []Step

	// File
	StorageRoot       string
	AllowedExtensions []string
	MaxBytes          int64
	MemoryOnly        bool

	// Static
	ContentType     string
	Path            string
	EnableFiltering bool
}

// ParseDescriptor reads and validates the descriptor in dir, producing an
// immutable Definition. The namespace comes from the directory layout and
// defaultName from the directory name; the descriptor's Name field wins
// when present.
func ParseDescriptor(dir, namespace, defaultName string) (*Definition, error) {
	raw, err := os.ReadFile(filepath.Join(dir, DescriptorFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("descriptor is not valid JSON: %w", err)
	}

	var file descriptorFile
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   &file,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}

	name := file.Name
	if name == "" {
		name = defaultName
	}
	if name == "" {
		return nil, fmt.Errorf("descriptor has no name")
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("endpoint name %q must not contain '/'", name)
	}

	fullPath := name
	if namespace != "" {
		fullPath = namespace + "/" + name
	}

	methods, err := normalizeMethods(file.AllowedMethods)
	if err != nil {
		return nil, err
	}

	def := &Definition{
		Name:           name,
		Namespace:      namespace,
		FullPath:       fullPath,
		AllowedMethods: methods,
		IsPrivate:      file.IsPrivate,
		Dir:            dir,
	}

	// Keep the fields this build does not know about. Nested leftovers
	// belong to their parent values and are reported with a dot path.
	for _, key := range md.Unused {
		if strings.Contains(key, ".") {
			continue
		}
		if def.Extra == nil {
			def.Extra = make(map[string]any)
		}
		def.Extra[key] = doc[key]
	}

	kind, err := resolveKind(&file)
	if err != nil {
		return nil, err
	}
	def.Kind = kind

	switch kind {
	case KindSQL:
		def.SQL, err = buildSQLSpec(&file)
	case KindProxy:
		def.Proxy, err = buildProxySpec(&file)
	case KindComposite:
		def.Composite, err = buildCompositeSpec(&file)
	case KindFile:
		def.File, err = buildFileSpec(&file)
	case KindStatic:
		def.Static, err = buildStaticSpec(&file, dir)
	}
	if err != nil {
		return nil, err
	}

	if err := def.validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// resolveKind reads the explicit Kind field, or infers the variant from the
// distinguishing field when older descriptors omit it.
func resolveKind(file *descriptorFile) (Kind, error) {
	if file.Kind != "" {
		for _, k := range []Kind{KindSQL, KindProxy, KindComposite, KindFile, KindStatic} {
			if strings.EqualFold(file.Kind, string(k)) {
				return k, nil
			}
		}
		return "", fmt.Errorf("unknown endpoint kind %q", file.Kind)
	}

	switch {
	case len(file.Steps) > 0:
		return KindComposite, nil
	case file.TargetUrlTemplate != "":
		return KindProxy, nil
	case file.ObjectName != "":
		return KindSQL, nil
	case file.Path != "":
		return KindStatic, nil
	case file.StorageRoot != "" || len(file.AllowedExtensions) > 0 || file.MaxBytes > 0:
		return KindFile, nil
	default:
		return "", fmt.Errorf("cannot determine endpoint kind")
	}
}

var knownMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
	"MERGE":  true,
}

func normalizeMethods(methods []string) ([]string, error) {
	seen := make(map[string]bool, len(methods))
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		upper := strings.ToUpper(strings.TrimSpace(m))
		if !knownMethods[upper] {
			return nil, fmt.Errorf("unsupported method %q", m)
		}
		if !seen[upper] {
			seen[upper] = true
			out = append(out, upper)
		}
	}
	return out, nil
}

func buildSQLSpec(file *descriptorFile) (*SQLSpec, error) {
	if file.ObjectName == "" {
		return nil, fmt.Errorf("sql endpoint requires ObjectName")
	}

	objectType, err := parseObjectType(file.ObjectType)
	if err != nil {
		return nil, err
	}

	schema := file.Schema
	if schema == "" {
		schema = "dbo"
	}

	columns, err := odata.NewColumnMap(file.AllowedColumns)
	if err != nil {
		return nil, fmt.Errorf("invalid AllowedColumns: %w", err)
	}

	return &SQLSpec{
		Schema:           schema,
		ObjectName:       file.ObjectName,
		ObjectType:       objectType,
		Procedure:        file.Procedure,
		PrimaryKey:       file.PrimaryKey,
		AllowedColumns:   file.AllowedColumns,
		RequiredColumns:  file.RequiredColumns,
		ColumnValidation: file.ColumnValidation,
		Parameters:       file.Parameters,
		columns:          columns,
	}, nil
}

func parseObjectType(raw string) (ObjectType, error) {
	if raw == "" {
		return ObjectTable, nil
	}
	for _, t := range []ObjectType{ObjectTable, ObjectView, ObjectStoredProcedure, ObjectTableValuedFunction} {
		if strings.EqualFold(raw, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown object type %q", raw)
}

func buildProxySpec(file *descriptorFile) (*ProxySpec, error) {
	if file.TargetUrlTemplate == "" {
		return nil, fmt.Errorf("proxy endpoint requires TargetUrlTemplate")
	}

	policy := ConflictSkip
	if file.HeaderConflict != "" {
		matched := false
		for _, p := range []ConflictPolicy{ConflictSkip, ConflictOverwrite, ConflictLogAndAdd} {
			if strings.EqualFold(file.HeaderConflict, string(p)) {
				policy = p
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("unknown header conflict policy %q", file.HeaderConflict)
		}
	}

	spec := &ProxySpec{
		TargetURLTemplate: file.TargetUrlTemplate,
		MethodTranslation: file.MethodTranslation,
		HeaderAppend:      file.HeaderAppend,
		HeaderConflict:    policy,
	}
	if len(file.AllowedColumns) > 0 {
		columns, err := odata.NewColumnMap(file.AllowedColumns)
		if err != nil {
			return nil, fmt.Errorf("invalid AllowedColumns: %w", err)
		}
		spec.columns = columns
	}
	return spec, nil
}

func buildCompositeSpec(file *descriptorFile) (*CompositeSpec, error) {
	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("composite endpoint requires at least one step")
	}

	spec := &CompositeSpec{Steps: file.Steps}
	for i := range spec.Steps {
		step := &spec.Steps[i]
		if step.Name == "" {
			return nil, fmt.Errorf("step %d has no name", i)
		}
		if step.Endpoint == "" {
			return nil, fmt.Errorf("step %q has no endpoint", step.Name)
		}
		if step.Method == "" {
			step.Method = "POST"
		}
		step.Method = strings.ToUpper(step.Method)
		if step.IsArray && step.ArrayProperty == "" {
			return nil, fmt.Errorf("step %q: IsArray requires ArrayProperty", step.Name)
		}
		if err := parseStepTemplate(step); err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
	}
	return spec, nil
}

// parseStepTemplate normalizes TemplateBody into a parsed JSON tree. The
// descriptor may embed it either as a nested document or as a JSON string.
func parseStepTemplate(step *Step) error {
	switch body := step.TemplateBody.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(body) == "" {
			return nil
		}
		var tree any
		if err := json.Unmarshal([]byte(body), &tree); err != nil {
			return fmt.Errorf("TemplateBody is not valid JSON: %w", err)
		}
		step.template = tree
	default:
		step.template = body
	}
	return nil
}

func buildFileSpec(file *descriptorFile) (*FileSpec, error) {
	if file.MaxBytes < 0 {
		return nil, fmt.Errorf("MaxBytes must not be negative")
	}

	exts := make([]string, 0, len(file.AllowedExtensions))
	for _, e := range file.AllowedExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}

	return &FileSpec{
		StorageRoot:       file.StorageRoot,
		AllowedExtensions: exts,
		MaxBytes:          file.MaxBytes,
		MemoryOnly:        file.MemoryOnly,
	}, nil
}

func buildStaticSpec(file *descriptorFile, dir string) (*StaticSpec, error) {
	if file.Path == "" {
		return nil, fmt.Errorf("static endpoint requires Path")
	}

	path := file.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read static payload: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat static payload: %w", err)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	sum := sha256.Sum256(payload)

	return &StaticSpec{
		ContentType:     contentType,
		Path:            file.Path,
		EnableFiltering: file.EnableFiltering,
		payload:         payload,
		etag:            hex.EncodeToString(sum[:]),
		lastModified:    info.ModTime(),
	}, nil
}
