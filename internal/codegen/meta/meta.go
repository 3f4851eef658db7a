package meta

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// RootToken replaces the scan root directory in every location.
	RootToken = "root"
	// Separator joins location segments and call keys.
	Separator = "::"
	// VoidType is the return type expression of a service without a value result.
	VoidType = "Void"

	// IntrospectionNamespace is the location of the synthetic introspection service.
	IntrospectionNamespace = "machinery_introspection"
	// IntrospectionService is the name of the synthetic introspection service.
	IntrospectionService = "clientSource"
)

// MessageKind discriminates the Message union.
type MessageKind string

const (
	KindRecord      MessageKind = "record"
	KindEnumeration MessageKind = "enumeration"
)

// Package identifies the Go package a declaration was found in.
type Package struct {
	Dir  string `json:"dir"`  // slash path relative to the scan root ("" for the root itself)
	Name string `json:"name"` // package clause name
}

// Param is a single service parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"` // Go type expression as written in the source
}

// Service is a function carrying the service marker.
type Service struct {
	Name      string            `json:"name"` // client-facing name
	Func      string            `json:"func"` // Go identifier
	Location  string            `json:"location"`
	Params    []Param           `json:"params"`
	Return    string            `json:"return"`
	Context   bool              `json:"context"`
	Fallible  bool              `json:"fallible"`
	Variadic  bool              `json:"variadic,omitempty"`
	Package   Package           `json:"package"`
	Imports   map[string]string `json:"imports,omitempty"`
	Synthetic bool              `json:"synthetic,omitempty"`
}

// Field is a single record field.
type Field struct {
	Name     string `json:"name"`     // Go field name
	JSONName string `json:"jsonName"` // name on the wire
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// Message is a type carrying the message marker: a record or an enumeration.
type Message struct {
	Kind     MessageKind `json:"kind"`
	Name     string      `json:"name"`
	Location string      `json:"location"`
	Fields   []Field     `json:"fields,omitempty"`
	Numeric  bool        `json:"numeric,omitempty"`  // integer enumeration; variants are decimal values
	Variants []string    `json:"variants,omitempty"` // wire values of the enumeration constants
}

// AnalyzeResult is the hand-off between extraction and both emitters.
type AnalyzeResult struct {
	Services []Service `json:"services"`
	Messages []Message `json:"messages"`
}

// Aggregate concatenates per-file results in the given order.
func Aggregate(results ...*AnalyzeResult) *AnalyzeResult {
	out := &AnalyzeResult{Services: []Service{}, Messages: []Message{}}
	for _, r := range results {
		if r == nil {
			continue
		}
		out.Services = append(out.Services, r.Services...)
		out.Messages = append(out.Messages, r.Messages...)
	}
	return out
}

// CallKey returns the identifier used to route a call to the service.
// Both the dispatch switch and the client leaves are keyed by it.
func CallKey(s Service) string {
	return trimRoot(s.Location) + Separator + s.Name
}

// NamespacePath returns the namespace segments of a service in the client
// call tree, with basePath stripped from its location.
func NamespacePath(s Service, basePath string) []string {
	loc := s.Location
	switch {
	case basePath != "" && loc == basePath:
		return nil
	case basePath != "" && strings.HasPrefix(loc, basePath+Separator):
		loc = strings.TrimPrefix(loc, basePath+Separator)
	}
	if loc == "" {
		return nil
	}
	return strings.Split(loc, Separator)
}

// Location builds a location from a slash path relative to the scan root.
// "api/greeting.go" => "root::api::greeting".
func Location(relPath string) string {
	relPath = strings.TrimSuffix(relPath, ".go")
	segs := []string{RootToken}
	for _, s := range strings.Split(relPath, "/") {
		if s == "" || s == "." {
			continue
		}
		segs = append(segs, s)
	}
	return strings.Join(segs, Separator)
}

func trimRoot(loc string) string {
	if loc == RootToken {
		return ""
	}
	return strings.TrimPrefix(loc, RootToken+Separator)
}

// IntrospectionServiceDecl is the synthetic service serving the generated client source.
func IntrospectionServiceDecl() Service {
	return Service{
		Name:      IntrospectionService,
		Func:      "machineryIntrospectionClientSource",
		Location:  IntrospectionNamespace,
		Params:    []Param{},
		Return:    "string",
		Context:   true,
		Fallible:  true,
		Synthetic: true,
	}
}

// Fingerprint hashes the canonical JSON encoding of the result.
// Emitters stamp it into both artifacts.
func (r *AnalyzeResult) Fingerprint() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
