package compiler

import (
	"errors"
	"fmt"

	"github.com/xirelogy/go-bscript/internal/token"
)

// ErrorCode classifies a compile failure. The compiler never formats
// user-facing messages; an ErrorSink turns codes into text.
type ErrorCode int

const (
	NoError ErrorCode = iota

	// syntax
	UnexpectedToken
	ExpectedDelimiter
	ExpectedKeyword
	ExpectedIdentifier
	ExpectedConstant
	MalformedConstant
	NotAssignable
	NotAStatement
	FunctionNotAllowed
	ExportNotAllowed

	// identifiers
	DuplicateIdentifier
	VariableNotFound
	UnknownFunction
	TooManyArguments
	TooFewArguments
	ProcedureAsFunction
	DuplicateLabel
	UndefinedLabel

	// typing
	BadTypeExpression
	BadTypeExpressionBoolean
	BadTypeExpressionNumber
	BadTypeExpressionString
	BadTypeExpressionDate

	// structure
	RecursiveModuleChain
	ParentNotCompiled

	// control flow
	ContinueOutsideLoop
	BreakOutsideLoop
	ReturnOutsideFunction
	ReturnValueInProcedure
	ReturnWithoutValue
	RaiseOutsideExcept
)

var codeNames = map[ErrorCode]string{
	NoError:                  "NoError",
	UnexpectedToken:          "UnexpectedToken",
	ExpectedDelimiter:        "ExpectedDelimiter",
	ExpectedKeyword:          "ExpectedKeyword",
	ExpectedIdentifier:       "ExpectedIdentifier",
	ExpectedConstant:         "ExpectedConstant",
	MalformedConstant:        "MalformedConstant",
	NotAssignable:            "NotAssignable",
	NotAStatement:            "NotAStatement",
	FunctionNotAllowed:       "FunctionNotAllowed",
	ExportNotAllowed:         "ExportNotAllowed",
	DuplicateIdentifier:      "DuplicateIdentifier",
	VariableNotFound:         "VariableNotFound",
	UnknownFunction:          "UnknownFunction",
	TooManyArguments:         "TooManyArguments",
	TooFewArguments:          "TooFewArguments",
	ProcedureAsFunction:      "ProcedureAsFunction",
	DuplicateLabel:           "DuplicateLabel",
	UndefinedLabel:           "UndefinedLabel",
	BadTypeExpression:        "BadTypeExpression",
	BadTypeExpressionBoolean: "BadTypeExpressionBoolean",
	BadTypeExpressionNumber:  "BadTypeExpressionNumber",
	BadTypeExpressionString:  "BadTypeExpressionString",
	BadTypeExpressionDate:    "BadTypeExpressionDate",
	RecursiveModuleChain:     "RecursiveModuleChain",
	ParentNotCompiled:        "ParentNotCompiled",
	ContinueOutsideLoop:      "ContinueOutsideLoop",
	BreakOutsideLoop:         "BreakOutsideLoop",
	ReturnOutsideFunction:    "ReturnOutsideFunction",
	ReturnValueInProcedure:   "ReturnValueInProcedure",
	ReturnWithoutValue:       "ReturnWithoutValue",
	RaiseOutsideExcept:       "RaiseOutsideExcept",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is a fatal compile error attributed to a source position.
type Error struct {
	Code    ErrorCode
	Pos     token.Position
	Context string
	Module  string
}

func (e *Error) Error() string {
	loc := e.Pos.String()
	if e.Module != "" {
		loc = e.Module + " " + loc
	}
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", loc, e.Code, e.Context)
	}
	return fmt.Sprintf("%s: %s", loc, e.Code)
}

// CodeOf extracts the ErrorCode from err, or NoError.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return NoError
}

// ErrorSink receives every fatal error the compiler raises.
type ErrorSink interface {
	ReportError(code ErrorCode, pos token.Position, context string)
}

// Warning is a non-fatal diagnostic.
type Warning struct {
	Code    ErrorCode
	Pos     token.Position
	Context string
}

func newError(code ErrorCode, context string) *Error {
	return &Error{Code: code, Context: context}
}

// at stamps pos on err when it is an *Error without a position.
func at(err error, pos token.Position) error {
	var ce *Error
	if errors.As(err, &ce) && ce.Pos == (token.Position{}) {
		ce.Pos = pos
	}
	return err
}
