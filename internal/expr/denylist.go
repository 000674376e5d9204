package expr

import (
	"fmt"
	"strings"
)

// deniedSubstrings — запрещённые подстроки в исходном тексте выражения.
//
// Скан выполняется до и независимо от разбора AST: даже если парсер
// отклонит конструкцию сам, denylist должен сработать первым. Список
// покрывает попытки протащить импорты, dunder-доступ к атрибутам
// и вызовы исполнения кода.
var deniedSubstrings = []string{
	"__",     // dunder-доступ к атрибутам
	"import", // импорт модулей
	"exec(",
	"eval(",
	"compile(",
	"system(",
	"subprocess",
	"getattr",
	"setattr",
	"delattr",
	"globals(",
	"locals(",
	"vars(",
	"open(",
}

// scanDenied проверяет исходный текст выражения по denylist.
// Возвращает ErrDeniedConstruct с указанием найденной подстроки.
func scanDenied(expression string) error {
	lowered := strings.ToLower(expression)
	for _, denied := range deniedSubstrings {
		if strings.Contains(lowered, denied) {
			return newError(expression,
				fmt.Sprintf("denied construct %q", denied), ErrDeniedConstruct)
		}
	}
	return nil
}
