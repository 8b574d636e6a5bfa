package configuration

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Version is a configuration format version of the form "major.minor".
type Version string

// MajorMinorVersion returns the Version "major.minor".
func MajorMinorVersion(major, minor uint) Version {
	return Version(fmt.Sprintf("%d.%d", major, minor))
}

func (version Version) parts() (major, minor uint, err error) {
	majorPart, minorPart, ok := strings.Cut(string(version), ".")
	if !ok {
		return 0, 0, fmt.Errorf("version %q has no minor part", string(version))
	}
	ma, err := strconv.ParseUint(majorPart, 10, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("version %q: %w", string(version), err)
	}
	mi, err := strconv.ParseUint(minorPart, 10, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("version %q: %w", string(version), err)
	}
	return uint(ma), uint(mi), nil
}

// Major returns the major part, or 0 if the version is malformed.
func (version Version) Major() uint {
	major, _, _ := version.parts()
	return major
}

// Minor returns the minor part, or 0 if the version is malformed.
func (version Version) Minor() uint {
	_, minor, _ := version.parts()
	return minor
}

// UnmarshalYAML accepts only well formed versions.
func (version *Version) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if _, _, err := Version(s).parts(); err != nil {
		return err
	}
	*version = Version(s)
	return nil
}

// Parser decodes versioned YAML documents and applies environment
// overrides to the result.
//
// A variable named PREFIX_A_B overrides field B of field A. Slice elements
// are addressed by index (PREFIX_LIST_0_NAME) and map entries by key
// (PREFIX_PARAMS_KEY, stored under the lowercased key).
type Parser struct {
	prefix string
	types  map[Version]reflect.Type
	env    map[string]string
}

// NewParser returns a Parser for documents whose version is a key of types.
// Each version is decoded into a new value of its type.
func NewParser(prefix string, types map[Version]reflect.Type) *Parser {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return &Parser{prefix: strings.ToUpper(prefix), types: types, env: env}
}

// Parse decodes in and returns a pointer to the decoded value with the
// environment applied.
func (p *Parser) Parse(in []byte) (interface{}, error) {
	var header struct {
		Version Version `yaml:"version"`
	}
	if err := yaml.Unmarshal(in, &header); err != nil {
		return nil, err
	}
	t, ok := p.types[header.Version]
	if !ok {
		return nil, fmt.Errorf("unsupported version: %q", header.Version)
	}

	out := reflect.New(t)
	if err := yaml.Unmarshal(in, out.Interface()); err != nil {
		return nil, err
	}
	if err := p.apply(out.Elem(), p.prefix); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// apply walks v and replaces every value that has a variable named after
// its path. Replaced values are walked too, so more specific variables win.
func (p *Parser) apply(v reflect.Value, name string) error {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			if err := p.set(v.Field(i), name+"_"+strings.ToUpper(f.Name)); err != nil {
				return err
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if err := p.set(v.Index(i), name+"_"+strconv.Itoa(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		return p.applyMap(v, name)
	}
	return nil
}

func (p *Parser) set(v reflect.Value, name string) error {
	if raw, ok := p.env[name]; ok {
		decoded, err := decodeEnv(raw, v.Type())
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		v.Set(decoded)
	}
	return p.apply(v, name)
}

// applyMap overrides the entries of existing nested values first, then
// sets top level entries from any PREFIX_KEY variable. Map values are not
// addressable, so nested overrides go through a copy.
func (p *Parser) applyMap(m reflect.Value, name string) error {
	elem := m.Type().Elem()
	if elem.Kind() == reflect.Map || elem.Kind() == reflect.Struct {
		for _, k := range m.MapKeys() {
			sub := reflect.New(elem).Elem()
			sub.Set(m.MapIndex(k))
			if err := p.apply(sub, name+"_"+strings.ToUpper(fmt.Sprint(k))); err != nil {
				return err
			}
			m.SetMapIndex(k, sub)
		}
		if elem.Kind() == reflect.Map {
			return nil
		}
	}

	for key, raw := range p.env {
		rest, ok := strings.CutPrefix(key, name+"_")
		if !ok || rest == "" || strings.Contains(rest, "_") {
			continue
		}
		if m.IsNil() {
			if !m.CanSet() {
				return nil
			}
			m.Set(reflect.MakeMap(m.Type()))
		}
		decoded, err := decodeEnv(raw, elem)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		m.SetMapIndex(reflect.ValueOf(strings.ToLower(rest)).Convert(m.Type().Key()), decoded)
	}
	return nil
}

var yamlUnmarshaler = reflect.TypeOf((*yaml.Unmarshaler)(nil)).Elem()

// decodeEnv decodes a variable into a new value of type t. Plain strings
// take the text as is, so a value like "prefix:" stays a string. Untyped
// values are decoded as YAML scalars and otherwise kept as text.
func decodeEnv(raw string, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch {
	case t.Kind() == reflect.String && !reflect.PointerTo(t).Implements(yamlUnmarshaler):
		out.SetString(raw)
		return out, nil
	case t.Kind() == reflect.Interface && t.NumMethod() == 0:
		var scalar interface{}
		if err := yaml.Unmarshal([]byte(raw), &scalar); err != nil {
			scalar = raw
		}
		switch scalar.(type) {
		case nil:
			return out, nil
		case map[interface{}]interface{}, []interface{}:
			scalar = raw
		}
		out.Set(reflect.ValueOf(scalar))
		return out, nil
	}
	if err := yaml.Unmarshal([]byte(raw), out.Addr().Interface()); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}
