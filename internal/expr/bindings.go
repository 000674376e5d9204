package expr

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// toCtyValue конвертирует произвольное Go-значение в cty.Value.
//
// Конвертация идёт через JSON: это даёт единообразное отображение
// map/slice/числовых типов без ручного перечисления вариантов.
func toCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("marshal binding: %w", err)
	}

	impliedType, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, fmt.Errorf("imply binding type: %w", err)
	}

	val, err := ctyjson.Unmarshal(raw, impliedType)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unmarshal binding: %w", err)
	}

	return val, nil
}

// fromCtyValue конвертирует cty.Value обратно в Go-значение.
func fromCtyValue(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}

	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}

	return result, nil
}

// buildVariables конвертирует bindings в переменные контекста вычисления.
func buildVariables(bindings map[string]any) (map[string]cty.Value, error) {
	vars := make(map[string]cty.Value, len(bindings))
	for name, value := range bindings {
		val, err := toCtyValue(value)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		vars[name] = val
	}
	return vars, nil
}
