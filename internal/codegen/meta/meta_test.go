package meta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"api/greeting.go", "root::api::greeting"},
		{"main.go", "root::main"},
		{"./user.go", "root::user"},
		{"a/b/c/d.go", "root::a::b::c::d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Location(tt.rel), tt.rel)
	}
}

func TestCallKeyStripsRoot(t *testing.T) {
	s := Service{Name: "hello", Location: "root::api::greeting"}
	assert.Equal(t, "api::greeting::hello", CallKey(s))

	intro := IntrospectionServiceDecl()
	assert.Equal(t, "machinery_introspection::clientSource", CallKey(intro))
}

func TestNamespacePath(t *testing.T) {
	s := Service{Name: "hello", Location: "root::api::greeting"}

	assert.Equal(t, []string{"api", "greeting"}, NamespacePath(s, RootToken))
	assert.Equal(t, []string{"greeting"}, NamespacePath(s, "root::api"))
	assert.Nil(t, NamespacePath(s, "root::api::greeting"))
	// a base path that is only a textual prefix of a segment does not apply
	assert.Equal(t, []string{"root", "api", "greeting"}, NamespacePath(s, "root::ap"))

	intro := IntrospectionServiceDecl()
	assert.Equal(t, []string{IntrospectionNamespace}, NamespacePath(intro, RootToken))
}

func TestAggregatePreservesOrder(t *testing.T) {
	a := &AnalyzeResult{
		Services: []Service{{Name: "a", Location: "root::x"}},
		Messages: []Message{{Kind: KindRecord, Name: "A"}},
	}
	b := &AnalyzeResult{
		Services: []Service{{Name: "b", Location: "root::y"}, {Name: "c", Location: "root::y"}},
		Messages: []Message{{Kind: KindEnumeration, Name: "B"}},
	}

	got := Aggregate(a, nil, b)
	require.Len(t, got.Services, 3)
	assert.Equal(t, "a", got.Services[0].Name)
	assert.Equal(t, "b", got.Services[1].Name)
	assert.Equal(t, "c", got.Services[2].Name)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "A", got.Messages[0].Name)
	assert.Equal(t, "B", got.Messages[1].Name)
}

func TestValidateDuplicateKeys(t *testing.T) {
	r := &AnalyzeResult{Services: []Service{
		{Name: "hello", Func: "Hello", Location: "root::api::greeting"},
		{Name: "hi", Func: "Hi", Location: "root::api::greeting"},
		{Name: "hello", Func: "hello", Location: "root::api::greeting"},
	}}

	err := r.Validate()
	require.Error(t, err)
	var dup *DuplicateServiceError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "api::greeting::hello", dup.Key)

	r.Services = r.Services[:2]
	assert.NoError(t, r.Validate())
}

func TestFingerprintStable(t *testing.T) {
	build := func() *AnalyzeResult {
		return &AnalyzeResult{
			Services: []Service{{
				Name: "hello", Func: "Hello", Location: "root::api::greeting",
				Params:  []Param{{Name: "message", Type: "string"}},
				Imports: map[string]string{"context": "context", "fmt": "fmt"},
			}},
			Messages: []Message{{Kind: KindEnumeration, Name: "Thing", Variants: []string{"A", "B"}}},
		}
	}

	a, err := build().Fingerprint()
	require.NoError(t, err)
	b, err := build().Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := build()
	changed.Messages[0].Variants = append(changed.Messages[0].Variants, "C")
	c, err := changed.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
