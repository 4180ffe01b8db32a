package service

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/services/catalog/internal/repository"
)

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	float64Type = reflect.TypeOf(float64(0))
)

// decimalHook converts driver numerics into decimal.Decimal and back into
// float64 for fields declared as plain floats.
func decimalHook(from, to reflect.Type, data any) (any, error) {
	switch to {
	case decimalType:
		switch v := data.(type) {
		case decimal.Decimal:
			return v, nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case int32:
			return decimal.NewFromInt32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case string:
			return decimal.NewFromString(v)
		}
	case float64Type:
		if from == decimalType {
			return data.(decimal.Decimal).InexactFloat64(), nil
		}
	}
	return data, nil
}

// decodeRow maps a row onto T by the "db" struct tags. Columns without a
// matching field are ignored and NULL leaves the field at its zero value.
func decodeRow[T any](row repository.Row) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "db",
		Result:  &out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(decimalHook),
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(row); err != nil {
		return out, err
	}
	return out, nil
}

// decodeRows decodes every row of a set. The result is never nil.
func decodeRows[T any](set string, rows repository.RowSet) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		v, err := decodeRow[T](row)
		if err != nil {
			return nil, apperrors.CorruptRecord(fmt.Sprintf("%s row %d does not match its shape", set, i), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// decodeIngredients parses the stored ingredients payload, a JSON array of
// strings. NULL, blank and the JSON literal null all mean no ingredients.
func decodeIngredients(raw *string) ([]string, error) {
	out := []string{}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return out, nil
	}
	if !jx.Valid([]byte(*raw)) {
		return nil, apperrors.CorruptRecord("ingredients_json is not valid JSON", nil)
	}

	d := jx.DecodeStr(*raw)
	switch d.Next() {
	case jx.Null:
		return out, nil
	case jx.Array:
	default:
		return nil, apperrors.CorruptRecord("ingredients_json is not an array", nil)
	}

	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return fmt.Errorf("ingredient %d is %s, not a string", len(out), d.Next())
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, apperrors.CorruptRecord("ingredients_json is not a string array", err)
	}
	return out, nil
}
