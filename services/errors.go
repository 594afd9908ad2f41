package services

import (
	"errors"
	"fmt"
)

// Виды ошибок. RuleError разворачивается в один из них, поэтому
// errors.Is(err, ErrConflict) работает для любого отказа валидации.
var (
	ErrUnauthorized  = errors.New("operation not allowed for the current user")
	ErrConflict      = errors.New("request conflicts with the current state")
	ErrNotFound      = errors.New("requested resource not found")
	ErrDataIntegrity = errors.New("stored data is incomplete")
	ErrUnavailable   = errors.New("dependency temporarily unavailable")

	// Некорректный ввод (неизвестный дивизион и т.п.), до каких-либо проверок правил.
	ErrValidationFailed = errors.New("validation failed")
)

// Коды отказов. Клиенты сопоставляют их с локализованными сообщениями.
const (
	CodeNotTeamAdmin        = "e100"
	CodeRosterExists        = "e101"
	CodeWrongGender         = "e102"
	CodeWrongAge            = "e103"
	CodeNotEligible         = "e104"
	CodeNotPaid             = "e105"
	CodeNoConsent           = "e106"
	CodeNotActive           = "e107"
	CodeIdle                = "e108"
	CodeInDifferentRoster   = "e109"
	CodeRemovalBlocked      = "e110"
	CodeRosterRegistered    = "e111"
	CodeMissingBirthDate    = "e112"
	CodeStaleVersion        = "e113"
	CodeAlreadyOnRoster     = "e114"
	CodeNotFound            = "e404"
	CodeRegistryUnavailable = "e503"
)

// RuleError is a rejection with a stable code for clients.
type RuleError struct {
	Code    string
	Kind    error
	Message string
	Params  map[string]string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

func newRuleError(kind error, code, message string) *RuleError {
	return &RuleError{Code: code, Kind: kind, Message: message}
}

func (e *RuleError) with(key, value string) *RuleError {
	if e.Params == nil {
		e.Params = make(map[string]string)
	}
	e.Params[key] = value
	return e
}

func conflict(code, message string) *RuleError {
	return newRuleError(ErrConflict, code, message)
}

func notFound(what string) *RuleError {
	return newRuleError(ErrNotFound, CodeNotFound, what+" not found")
}

func unavailable(message string, cause error) error {
	return fmt.Errorf("%w: %v", newRuleError(ErrUnavailable, CodeRegistryUnavailable, message), cause)
}

// RuleCode returns the rejection code carried by err, or "".
func RuleCode(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
