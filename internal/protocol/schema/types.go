package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeCode identifies one IEC 61131-3 scalar type.
type TypeCode uint8

const (
	TypeInvalid TypeCode = iota
	TypeBool
	TypeByte
	TypeUSInt
	TypeSInt
	TypeWord
	TypeUInt
	TypeInt
	TypeDWord
	TypeUDInt
	TypeDInt
	TypeLWord
	TypeULInt
	TypeLInt
	TypeReal
	TypeLReal
	TypeChar
	TypeString
)

type typeClass uint8

const (
	classNone typeClass = iota
	classBool
	classUnsigned
	classSigned
	classFloat
	classChar
	classString
)

type typeInfo struct {
	name  string
	width int
	class typeClass
}

var typeTable = map[TypeCode]typeInfo{
	TypeBool:   {"BOOL", 1, classBool},
	TypeByte:   {"BYTE", 1, classUnsigned},
	TypeUSInt:  {"USINT", 1, classUnsigned},
	TypeSInt:   {"SINT", 1, classSigned},
	TypeWord:   {"WORD", 2, classUnsigned},
	TypeUInt:   {"UINT", 2, classUnsigned},
	TypeInt:    {"INT", 2, classSigned},
	TypeDWord:  {"DWORD", 4, classUnsigned},
	TypeUDInt:  {"UDINT", 4, classUnsigned},
	TypeDInt:   {"DINT", 4, classSigned},
	TypeLWord:  {"LWORD", 8, classUnsigned},
	TypeULInt:  {"ULINT", 8, classUnsigned},
	TypeLInt:   {"LINT", 8, classSigned},
	TypeReal:   {"REAL", 4, classFloat},
	TypeLReal:  {"LREAL", 8, classFloat},
	TypeChar:   {"CHAR", 1, classChar},
	TypeString: {"STRING", 0, classString},
}

// struct-module format codes accepted for compatibility with existing field tables.
var formatCodes = map[string]TypeCode{
	"?": TypeBool,
	"B": TypeByte,
	"b": TypeSInt,
	"H": TypeWord,
	"h": TypeInt,
	"I": TypeDWord,
	"i": TypeDInt,
	"Q": TypeLWord,
	"q": TypeLInt,
	"f": TypeReal,
	"d": TypeLReal,
	"c": TypeChar,
}

// Valid reports whether t is a known type code.
func (t TypeCode) Valid() bool {
	_, ok := typeTable[t]
	return ok
}

// Width returns the fixed byte width of t. STRING has no intrinsic width and returns 0.
func (t TypeCode) Width() int {
	return typeTable[t].width
}

func (t TypeCode) String() string {
	info, ok := typeTable[t]
	if !ok {
		return fmt.Sprintf("TypeCode(%d)", uint8(t))
	}
	return info.name
}

// Signed reports whether t is a two's complement integer type.
func (t TypeCode) Signed() bool { return typeTable[t].class == classSigned }

// Unsigned reports whether t is an unsigned integer type.
func (t TypeCode) Unsigned() bool { return typeTable[t].class == classUnsigned }

// Integer reports whether t is any integer type.
func (t TypeCode) Integer() bool { return t.Signed() || t.Unsigned() }

// Float reports whether t is REAL or LREAL.
func (t TypeCode) Float() bool { return typeTable[t].class == classFloat }

func (t TypeCode) class() typeClass { return typeTable[t].class }

// ParseType resolves a type name to its code and, for STRING, its length.
// Accepted forms: IEC names (case-insensitive, "STRING(10)" or "STRING[10]") and
// struct format codes ("I", "f", "10s", ...).
func ParseType(raw string) (TypeCode, int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return TypeInvalid, 0, fmt.Errorf("%w: empty type", ErrUnknownType)
	}
	if code, ok := formatCodes[s]; ok {
		return code, 0, nil
	}
	if strings.HasSuffix(s, "s") && len(s) > 1 {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err == nil {
			if n <= 0 {
				return TypeInvalid, 0, fmt.Errorf("%w: %q", ErrInvalidLength, raw)
			}
			return TypeString, n, nil
		}
	}

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "STRING") {
		rest := strings.TrimSpace(upper[len("STRING"):])
		if len(rest) < 3 {
			return TypeInvalid, 0, fmt.Errorf("%w: %q needs a length", ErrInvalidLength, raw)
		}
		open, end := rest[0], rest[len(rest)-1]
		if !(open == '(' && end == ')') && !(open == '[' && end == ']') {
			return TypeInvalid, 0, fmt.Errorf("%w: %q", ErrUnknownType, raw)
		}
		n, err := strconv.Atoi(strings.TrimSpace(rest[1 : len(rest)-1]))
		if err != nil || n <= 0 {
			return TypeInvalid, 0, fmt.Errorf("%w: %q", ErrInvalidLength, raw)
		}
		return TypeString, n, nil
	}
	for code, info := range typeTable {
		if code != TypeString && info.name == upper {
			return code, 0, nil
		}
	}
	return TypeInvalid, 0, fmt.Errorf("%w: %q", ErrUnknownType, raw)
}
