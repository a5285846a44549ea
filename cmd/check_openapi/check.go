package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"bloodlink/pkg/domain"

	"gopkg.in/yaml.v3"
)

type openAPIDoc struct {
	Paths      map[string]map[string]operation `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type operation struct {
	Security  []map[string][]string `yaml:"security"`
	Responses map[string]any        `yaml:"responses"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

type route struct {
	Method string
	Path   string
	Gated  bool
}

// routes served by services/api.
var routes = []route{
	{"get", "/healthz", false},
	{"post", "/api/auth/register", false},
	{"post", "/api/auth/login", false},
	{"post", "/api/auth/logout", false},
	{"get", "/api/auth/session", false},
	{"post", "/api/donors", false},
	{"get", "/api/donors", true},
	{"get", "/api/donors/stats", true},
	{"get", "/api/donors/{id}", true},
	{"delete", "/api/donors/{id}", true},
	{"post", "/api/donors/{id}/approve", true},
	{"post", "/api/donors/{id}/reject", true},
	{"put", "/api/donors/{id}/status", true},
	{"post", "/api/contact", false},
	{"get", "/api/contact", true},
}

// schemas whose property set must match the JSON encoding of a Go type.
var modelSchemas = map[string]reflect.Type{
	"Donor":          reflect.TypeOf(domain.Donor{}),
	"DonorInput":     reflect.TypeOf(domain.DonorInput{}),
	"DonorStats":     reflect.TypeOf(domain.DonorStats{}),
	"ContactMessage": reflect.TypeOf(domain.ContactMessage{}),
	"ContactInput":   reflect.TypeOf(domain.ContactInput{}),
	"Admin":          reflect.TypeOf(domain.Session{}),
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func checkDoc(doc openAPIDoc) error {
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errResp); err != nil {
		return err
	}
	for name, typ := range modelSchemas {
		s, err := getSchema(doc, name)
		if err != nil {
			return err
		}
		if err := ensureMatchesType(name, s, typ); err != nil {
			return err
		}
	}
	return checkRoutes(doc)
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	if !makeSet(s.Required)["error"] {
		return errors.New("ErrorResponse.required must include \"error\"")
	}
	errorProp, ok := s.Properties["error"]
	if !ok || errorProp.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	return nil
}

func ensureMatchesType(name string, s schema, typ reflect.Type) error {
	want := jsonFields(typ)
	got := make([]string, 0, len(s.Properties))
	for prop := range s.Properties {
		got = append(got, prop)
	}
	sort.Strings(got)
	if strings.Join(want, ",") != strings.Join(got, ",") {
		return fmt.Errorf("%s properties mismatch: schema %v vs %s %v", name, got, typ.Name(), want)
	}
	required := append([]string(nil), s.Required...)
	sort.Strings(required)
	if strings.Join(want, ",") != strings.Join(required, ",") {
		return fmt.Errorf("%s must require every field: %v", name, required)
	}
	return nil
}

func checkRoutes(doc openAPIDoc) error {
	for _, r := range routes {
		ops, ok := doc.Paths[r.Path]
		if !ok {
			return fmt.Errorf("path %s missing", r.Path)
		}
		op, ok := ops[r.Method]
		if !ok {
			return fmt.Errorf("%s %s missing", strings.ToUpper(r.Method), r.Path)
		}
		if !r.Gated {
			continue
		}
		if !requiresCookie(op) {
			return fmt.Errorf("%s %s must declare sessionCookie security", strings.ToUpper(r.Method), r.Path)
		}
		if _, ok := op.Responses["401"]; !ok {
			return fmt.Errorf("%s %s must document 401", strings.ToUpper(r.Method), r.Path)
		}
	}
	return nil
}

func requiresCookie(op operation) bool {
	for _, req := range op.Security {
		if _, ok := req["sessionCookie"]; ok {
			return true
		}
	}
	return false
}

// jsonFields lists the encoded field names of a struct, sorted.
func jsonFields(typ reflect.Type) []string {
	out := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" || !typ.Field(i).IsExported() {
			continue
		}
		if name == "" {
			name = typ.Field(i).Name
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func makeSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
