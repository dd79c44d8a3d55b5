package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/phillip/parenting-hub-go/apperr"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func validateStruct(doc any) error {
	return translate(validatorInstance().Struct(doc))
}

// validatePartial validates only the named (json) top-level fields of doc,
// nested struct fields included.
func validatePartial(doc any, jsonFields ...string) error {
	names := GoFieldNames(doc)
	keep := make(map[string]bool, len(jsonFields))
	for _, f := range jsonFields {
		if n, ok := names[f]; ok {
			keep[n] = true
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return translate(validatorInstance().StructFiltered(doc, func(ns []byte) bool {
		// ns is "Type.Field[.Nested...]"
		parts := strings.SplitN(string(ns), ".", 3)
		if len(parts) < 2 {
			return false
		}
		return !keep[parts[1]]
	}))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.NewValidationError("document", err.Error())
	}
	out := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperr.FieldError{Field: fieldPath(fe.Namespace()), Message: describe(fe)})
	}
	return apperr.NewValidationErrors(out)
}

// fieldPath drops the struct type from "Event.organizer.email".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// GoFieldNames maps the json name of every top-level field of doc, promoted
// fields of embedded structs included, to its Go field name.
func GoFieldNames(doc any) map[string]string {
	t := reflect.TypeOf(doc)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make(map[string]string)
	collectFields(t, out)
	return out
}

func collectFields(t reflect.Type, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if f.Anonymous && tag == "" && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, out)
			continue
		}
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = f.Name
	}
}

// FieldValues returns the current values of the named (json) fields of doc.
func FieldValues(doc any, jsonFields []string) map[string]any {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	names := GoFieldNames(doc)
	out := make(map[string]any, len(jsonFields))
	for _, f := range jsonFields {
		if n, ok := names[f]; ok {
			out[f] = v.FieldByName(n).Interface()
		}
	}
	return out
}

// ApplyFields copies the named (json) fields of src onto dst. Both must point
// to values of the same struct type.
func ApplyFields(dst, src any, jsonFields []string) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	names := GoFieldNames(dst)
	for _, f := range jsonFields {
		if n, ok := names[f]; ok {
			dv.FieldByName(n).Set(sv.FieldByName(n))
		}
	}
}
