// Package conversion provides utilities for converting loosely typed values
// (decoded JSON, YAML or TOML) into concrete Go types.
package conversion

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ToString converts a scalar value to string.
func ToString(value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// ToInt converts a numeric value to int. Floats must be whole numbers.
func ToInt(value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int", v)
		}
		return int(v), nil
	case float32:
		return ToInt(float64(v))
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int(v), nil
	case json.Number:
		i, err := v.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// ToFloat64 converts a numeric value, or a numeric string, to float64.
func ToFloat64(value interface{}) (float64, error) {
	if value == nil {
		return 0, nil
	}

	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

// ToMap converts a struct, a map with string-convertible keys, or a raw
// JSON object into map[string]interface{}. The result never aliases the
// input map.
func ToMap(value interface{}) (map[string]interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, nil
	case json.RawMessage:
		return rawToMap(v)
	case []byte:
		return rawToMap(v)
	}

	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Struct:
		if _, ok := val.Interface().(time.Time); ok {
			return nil, fmt.Errorf("cannot convert time.Time to map[string]interface{}")
		}
		data, err := json.Marshal(val.Interface())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal struct: %w", err)
		}
		return rawToMap(data)
	case reflect.Map:
		result := make(map[string]interface{}, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			keyStr, err := ToString(iter.Key().Interface())
			if err != nil {
				return nil, fmt.Errorf("map key must be convertible to string, got %v", iter.Key().Kind())
			}
			result[keyStr] = iter.Value().Interface()
		}
		return result, nil
	}

	return nil, fmt.Errorf("cannot convert %T to map[string]interface{}", value)
}

func rawToMap(data []byte) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to map: %w", err)
	}
	return result, nil
}
