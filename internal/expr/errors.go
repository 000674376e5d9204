package expr

import "errors"

// Ошибки вычисления выражений.
var (
	// ErrEmptyExpression — пустое выражение.
	ErrEmptyExpression = errors.New("empty expression")

	// ErrDeniedConstruct — выражение содержит запрещённую конструкцию
	// (отклонено denylist-сканом исходного текста).
	ErrDeniedConstruct = errors.New("expression contains denied construct")

	// ErrDisallowedSyntax — AST выражения содержит тип узла вне allow-list.
	ErrDisallowedSyntax = errors.New("expression contains disallowed syntax")

	// ErrParse — выражение не распарсилось.
	ErrParse = errors.New("expression parse failed")

	// ErrEvaluation — ошибка вычисления (неразрешимый идентификатор,
	// отсутствующий атрибут, несовместимые типы).
	ErrEvaluation = errors.New("expression evaluation failed")

	// ErrNotBoolean — результат выражения не является булевым значением.
	ErrNotBoolean = errors.New("expression result is not a boolean")
)

// EvaluationError — ошибка вычисления с контекстом.
type EvaluationError struct {
	// Expression — исходный текст выражения.
	Expression string

	// Detail — описание проблемы.
	Detail string

	// Err — базовая ошибка.
	Err error
}

// Error реализует интерфейс error.
func (e *EvaluationError) Error() string {
	return "expression " + quote(e.Expression) + ": " + e.Detail
}

// Unwrap возвращает базовую ошибку.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// newError создаёт EvaluationError.
func newError(expression, detail string, err error) *EvaluationError {
	return &EvaluationError{
		Expression: expression,
		Detail:     detail,
		Err:        err,
	}
}

// quote обрезает длинные выражения в сообщениях об ошибках.
func quote(s string) string {
	const maxLen = 80
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return "\"" + s + "\""
}
