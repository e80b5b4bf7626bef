// Package errors defines the semantic-analysis error taxonomy and a
// diagnostics reporter that renders CompileError values either as the
// required plain stdout line or, in verbose mode, as caret-annotated
// colorized source excerpts.
package errors

import (
	"fmt"

	"github.com/tangzhangming/nova/internal/token"
)

// Kind identifies the category of a semantic failure.
type Kind int

const (
	DuplicateClass Kind = iota
	UnknownBase
	InheritanceCycleOrUnresolved
	DuplicateField
	DuplicateForwardDeclaration
	DuplicateImplementation
	ReturnTypeMismatchBetweenDeclarations
	DuplicateConstructorSignature
	SignatureNotDeclared
	UndeclaredIdentifier
	TypeNotDeclared
	UnknownClass
	MethodNotDeclared
	NoMatchingOverload
	ArgumentCountMismatch
	TypeMismatch
	VoidInitializer
	VoidAssignmentTarget
	ReturnOutsideMethod
	ReturnValueInVoid
	MissingReturnValue
	ExpressionBodyWithoutReturnType
	DuplicateVariable
	UnsupportedExpressionTarget
)

var kindNames = map[Kind]string{
	DuplicateClass:                         "DuplicateClass",
	UnknownBase:                            "UnknownBase",
	InheritanceCycleOrUnresolved:           "InheritanceCycleOrUnresolved",
	DuplicateField:                         "DuplicateField",
	DuplicateForwardDeclaration:            "DuplicateForwardDeclaration",
	DuplicateImplementation:                "DuplicateImplementation",
	ReturnTypeMismatchBetweenDeclarations:  "ReturnTypeMismatchBetweenDeclarations",
	DuplicateConstructorSignature:          "DuplicateConstructorSignature",
	SignatureNotDeclared:                   "SignatureNotDeclared",
	UndeclaredIdentifier:                   "UndeclaredIdentifier",
	TypeNotDeclared:                        "TypeNotDeclared",
	UnknownClass:                           "UnknownClass",
	MethodNotDeclared:                      "MethodNotDeclared",
	NoMatchingOverload:                     "NoMatchingOverload",
	ArgumentCountMismatch:                  "ArgumentCountMismatch",
	TypeMismatch:                           "TypeMismatch",
	VoidInitializer:                        "VoidInitializer",
	VoidAssignmentTarget:                   "VoidAssignmentTarget",
	ReturnOutsideMethod:                    "ReturnOutsideMethod",
	ReturnValueInVoid:                      "ReturnValueInVoid",
	MissingReturnValue:                     "MissingReturnValue",
	ExpressionBodyWithoutReturnType:        "ExpressionBodyWithoutReturnType",
	DuplicateVariable:                      "DuplicateVariable",
	UnsupportedExpressionTarget:            "UnsupportedExpressionTarget",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// CompileError is a single semantic-analysis failure. Hint is populated
// only for the verbose renderer; the required plain-text line never
// reads it.
type CompileError struct {
	Kind    Kind
	Pos     token.Position
	Message string
	Hint    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Message)
}

// New builds a CompileError at pos with no hint.
func New(kind Kind, pos token.Position, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// WithHint attaches a verbose-only remediation hint and returns e.
func (e *CompileError) WithHint(hint string) *CompileError {
	e.Hint = hint
	return e
}
