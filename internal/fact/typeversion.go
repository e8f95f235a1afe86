package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// FactType is the human label and the natural-key derived identifier of a kind.
type FactType struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// TypeVersion fingerprints one exact shape of a fact type.
type TypeVersion struct {
	Type FactType `json:"type"`
	Hash string   `json:"hash"`
}

func (v TypeVersion) ID() string {
	return v.Type.ID
}

// versionKey identifies one concrete shape of a kind. Pointer and value
// receivers share a key.
type versionKey struct {
	kind Kind
	typ  reflect.Type
}

// versions caches the type version of each registered kind and shape.
var versions sync.Map

// Register computes and caches the type version of kind as carried by prototype.
// Distinct Go types carrying the same kind get distinct versions.
func Register(kind Kind, prototype any) (TypeVersion, error) {
	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	key := versionKey{kind: kind, typ: t}

	if v, ok := versions.Load(key); ok {
		return v.(TypeVersion), nil
	}

	v, err := deriveTypeVersion(kind, t)
	if err != nil {
		return TypeVersion{}, err
	}

	actual, _ := versions.LoadOrStore(key, v)
	return actual.(TypeVersion), nil
}

// TypeVersionOf returns the type version of f, registering its kind on first use.
func TypeVersionOf(f Fact) (TypeVersion, error) {
	if f == nil {
		return TypeVersion{}, fmt.Errorf("failed to version nil fact: %w", ErrMissingIdentifier)
	}

	return Register(f.Kind(), f)
}

func deriveTypeVersion(kind Kind, t reflect.Type) (TypeVersion, error) {
	id, err := NaturalKey(string(kind), DefaultMinLength)
	if err != nil {
		return TypeVersion{}, fmt.Errorf("failed to derive type identifier: %w", err)
	}

	sum := sha256.Sum256([]byte(string(kind) + "|" + shape(t)))

	return TypeVersion{
		Type: FactType{Name: string(kind), ID: id},
		Hash: hex.EncodeToString(sum[:]),
	}, nil
}

// shape renders the canonical structure of t: its qualified name followed by
// every exported field with its serialized name and type.
func shape(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return t.String()
	}

	var b strings.Builder
	b.WriteString(t.PkgPath())
	b.WriteByte('.')
	b.WriteString(t.Name())
	b.WriteByte('{')
	writeFields(&b, t)
	b.WriteByte('}')

	return b.String()
}

func writeFields(b *strings.Builder, t reflect.Type) {
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			writeFields(b, f.Type)
			continue
		}

		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" {
			name = tag
		}
		if name == "-" {
			continue
		}

		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(f.Type.String())
		b.WriteByte(';')
	}
}
