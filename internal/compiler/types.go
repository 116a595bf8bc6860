package compiler

import (
	"fmt"
	"strings"

	"github.com/xirelogy/go-bscript/internal/bytecode"
)

// TypeKind is the compiler's view of a declared or inferred type.
type TypeKind uint8

const (
	TypeAny TypeKind = iota
	TypeNumber
	TypeString
	TypeDate
	TypeBoolean
	TypeOther
)

// KindOf maps a type name to its kind; "" is TypeAny.
func KindOf(name string) TypeKind {
	switch strings.ToUpper(name) {
	case "":
		return TypeAny
	case "NUMBER":
		return TypeNumber
	case "STRING":
		return TypeString
	case "DATE":
		return TypeDate
	case "BOOLEAN":
		return TypeBoolean
	}
	return TypeOther
}

// Delta returns the opcode variant for k.
func (k TypeKind) Delta() bytecode.Delta {
	switch k {
	case TypeNumber:
		return bytecode.DeltaNumber
	case TypeString:
		return bytecode.DeltaString
	case TypeDate:
		return bytecode.DeltaDate
	case TypeBoolean:
		return bytecode.DeltaBoolean
	}
	return bytecode.DeltaNone
}

func (k TypeKind) mismatchCode() ErrorCode {
	switch k {
	case TypeNumber:
		return BadTypeExpressionNumber
	case TypeString:
		return BadTypeExpressionString
	case TypeDate:
		return BadTypeExpressionDate
	case TypeBoolean:
		return BadTypeExpressionBoolean
	}
	return BadTypeExpression
}

// CanonicalType spells the basic type names uniformly and keeps others as written.
func CanonicalType(name string) string {
	switch KindOf(name) {
	case TypeNumber:
		return "Number"
	case TypeString:
		return "String"
	case TypeDate:
		return "Date"
	case TypeBoolean:
		return "Boolean"
	}
	return name
}

// TypeMismatch is returned by CheckTypeDef.
type TypeMismatch struct {
	Code     ErrorCode
	Expected string
	Got      string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Code, e.Expected, e.Got)
}

// CheckTypeDef selects the opcode variant for a value of type inferred used
// where expected is required. An untyped side never conflicts; the check is
// left to the VM.
func CheckTypeDef(inferred, expected string) (bytecode.Delta, error) {
	if expected == "" {
		return CorrectTypeDef(inferred), nil
	}
	want := KindOf(expected)
	if inferred == "" || strings.EqualFold(inferred, expected) {
		return want.Delta(), nil
	}
	return bytecode.DeltaNone, &TypeMismatch{Code: want.mismatchCode(), Expected: expected, Got: inferred}
}

// CorrectTypeDef selects the opcode variant for inferred without any expectation.
func CorrectTypeDef(inferred string) bytecode.Delta {
	return KindOf(inferred).Delta()
}

type opClass uint8

const (
	classArith opClass = iota
	classEquality
	classOrdering
	classLogical
)

// binaryType picks the variant and result type of a binary operator from its
// operand types. The variant follows the left operand.
func binaryType(code bytecode.Opcode, class opClass, left, right string) (bytecode.Delta, string, error) {
	switch class {
	case classLogical:
		if _, err := CheckTypeDef(left, "Boolean"); err != nil {
			return 0, "", err
		}
		if _, err := CheckTypeDef(right, "Boolean"); err != nil {
			return 0, "", err
		}
		return CorrectTypeDef(left), "Boolean", nil
	case classEquality:
		return CorrectTypeDef(left), "Boolean", nil
	case classOrdering:
		if left == "" {
			return bytecode.DeltaNone, "Boolean", nil
		}
		d, err := CheckTypeDef(right, left)
		return d, "Boolean", err
	}

	lk := KindOf(left)
	switch {
	case code == bytecode.OpAdd && lk == TypeString:
		return bytecode.DeltaString, "String", nil
	case (code == bytecode.OpAdd || code == bytecode.OpSub) && lk == TypeDate:
		if code == bytecode.OpSub && KindOf(right) == TypeDate {
			return bytecode.DeltaDate, "Number", nil
		}
		if _, err := CheckTypeDef(right, "Number"); err != nil {
			return 0, "", err
		}
		return bytecode.DeltaDate, "Date", nil
	case lk == TypeAny:
		if code == bytecode.OpAdd || code == bytecode.OpSub {
			return bytecode.DeltaNone, "", nil
		}
		if _, err := CheckTypeDef(right, "Number"); err != nil {
			return 0, "", err
		}
		return bytecode.DeltaNone, "Number", nil
	}
	if _, err := CheckTypeDef(left, "Number"); err != nil {
		return 0, "", err
	}
	if _, err := CheckTypeDef(right, "Number"); err != nil {
		return 0, "", err
	}
	return bytecode.DeltaNumber, "Number", nil
}
