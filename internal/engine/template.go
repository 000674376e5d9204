package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// InputBindingKey — зарезервированный ключ, под которым шаблонам
// доступны исходные входные данные run.
const InputBindingKey = "input"

// placeholderRe — плейсхолдер вида {node.path.to.field}.
// JSON-литералы в конфигах под шаблон не попадают: внутри скобок
// допустимы только идентификаторы, разделённые точками.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\}`)

// LookupPath разрешает dotted-path по bindings.
//
// Первый сегмент — ключ верхнего уровня (ID узла, "input" или
// переменная итерации), дальше — спуск по map и слайсам (числовые
// сегменты индексируют слайс). Неразрешимый путь — ошибка.
func LookupPath(bindings map[string]any, path string) (any, error) {
	segments := strings.Split(path, ".")

	current, ok := bindings[segments[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q (unknown root %q)", ErrUnresolvedPath, path, segments[0])
	}

	for _, seg := range segments[1:] {
		switch v := current.(type) {
		case map[string]any:
			next, exists := v[seg]
			if !exists {
				return nil, fmt.Errorf("%w: %q (missing field %q)", ErrUnresolvedPath, path, seg)
			}
			current = next

		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("%w: %q (bad index %q)", ErrUnresolvedPath, path, seg)
			}
			current = v[idx]

		default:
			return nil, fmt.Errorf("%w: %q (cannot descend into %T at %q)", ErrUnresolvedPath, path, current, seg)
		}
	}

	return current, nil
}

// Render заменяет все плейсхолдеры в строке значениями из bindings.
//
// Рендеринг происходит непосредственно перед выполнением узла, поэтому
// шаблоны всегда видят самые свежие upstream-данные. Неразрешимый
// плейсхолдер — ошибка всего рендеринга.
func Render(template string, bindings map[string]any) (string, error) {
	if !strings.Contains(template, "{") {
		return template, nil
	}

	var firstErr error
	rendered := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		if firstErr != nil {
			return match
		}
		path := match[1 : len(match)-1]
		value, err := LookupPath(bindings, path)
		if err != nil {
			firstErr = err
			return match
		}
		return stringify(value)
	})

	if firstErr != nil {
		return "", firstErr
	}
	return rendered, nil
}

// RenderValue рендерит произвольное значение конфига.
// Рекурсивно обрабатывает map и slice.
//
// Строка, целиком состоящая из одного плейсхолдера, заменяется сырым
// значением (map, slice, число), а не его строковым представлением:
// это позволяет передавать структуры между узлами без сериализации.
func RenderValue(value any, bindings map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		if path, ok := wholePlaceholder(v); ok {
			return LookupPath(bindings, path)
		}
		return Render(v, bindings)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, bindings)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, bindings)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// Остальные типы (числа, bool, nil) не содержат шаблонов
		return value, nil
	}
}

// RenderConfig рендерит конфигурацию узла.
func RenderConfig(config map[string]any, bindings map[string]any) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(config, bindings)
	if err != nil {
		return nil, err
	}

	return rendered.(map[string]any), nil
}

// wholePlaceholder возвращает путь, если строка целиком является
// одним плейсхолдером.
func wholePlaceholder(s string) (string, bool) {
	match := placeholderRe.FindString(s)
	if match == s && match != "" {
		return s[1 : len(s)-1], true
	}
	return "", false
}

// stringify приводит значение к строке для подстановки в шаблон.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		// map, slice и прочие структуры — в JSON
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
