// Package schema generates MCP tool input schemas from Go structs.
//
// Recognized struct tags:
//
//	json        property name; ",omitempty" marks the property optional
//	description property description
//	enum        comma separated list of allowed values
//	default     default value, converted to the property's type
//	format      JSON schema format hint
//	required    "true" forces the property into the required list
package schema

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/localrivet/currentdt/protocol"
)

// goTypeToMCPType maps Go kinds to MCP schema types.
func goTypeToMCPType(kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}

// FromStruct generates a protocol.ToolInputSchema from struct tags.
// A property is required when it is neither a pointer nor tagged omitempty,
// or when it carries required:"true".
func FromStruct(v interface{}) protocol.ToolInputSchema {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	props := map[string]protocol.PropertyDetail{}
	required := []string{}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := strings.ToLower(field.Name)
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitempty = true
				}
			}
		}

		fieldType := field.Type
		isPtr := fieldType.Kind() == reflect.Ptr
		if isPtr {
			fieldType = fieldType.Elem()
		}
		schemaType := goTypeToMCPType(fieldType.Kind())

		if field.Tag.Get("required") == "true" || (!isPtr && !omitempty) {
			required = append(required, name)
		}

		var enumValues []interface{}
		if enumTag := field.Tag.Get("enum"); enumTag != "" {
			for _, e := range strings.Split(enumTag, ",") {
				enumValues = append(enumValues, strings.TrimSpace(e))
			}
		}

		props[name] = protocol.PropertyDetail{
			Type:        schemaType,
			Description: field.Tag.Get("description"),
			Enum:        enumValues,
			Default:     parseDefault(field.Tag.Get("default"), schemaType),
			Format:      field.Tag.Get("format"),
		}
	}

	return protocol.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func parseDefault(raw, schemaType string) interface{} {
	if raw == "" {
		return nil
	}
	switch schemaType {
	case "integer":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "number":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}
