package core

import "fmt"

// TypeKind identifies a generic column type, independent of any backend.
type TypeKind int

const (
	NullType TypeKind = iota
	IntegerType
	BigIntegerType
	FloatType
	NumericType
	StringType
	TextType
	BooleanType
	DateTimeType
	DateType
	BlobType
)

func (k TypeKind) String() string {
	switch k {
	case NullType:
		return "NULL"
	case IntegerType:
		return "INTEGER"
	case BigIntegerType:
		return "BIGINT"
	case FloatType:
		return "FLOAT"
	case NumericType:
		return "NUMERIC"
	case StringType:
		return "VARCHAR"
	case TextType:
		return "TEXT"
	case BooleanType:
		return "BOOLEAN"
	case DateTimeType:
		return "TIMESTAMP"
	case DateType:
		return "DATE"
	case BlobType:
		return "BLOB"
	default:
		return fmt.Sprintf("TypeKind(%d)", int(k))
	}
}

// Type is a generic column type plus its dimensions. Length applies to
// string types, Precision/Scale to numerics.
type Type struct {
	Kind      TypeKind
	Length    int
	Precision int
	Scale     int
}

func (t Type) String() string {
	switch {
	case t.Kind == StringType && t.Length > 0:
		return fmt.Sprintf("VARCHAR(%d)", t.Length)
	case t.Kind == NumericType && t.Precision > 0:
		return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
	default:
		return t.Kind.String()
	}
}

// String returns a VARCHAR type of the given length.
func String(length int) Type { return Type{Kind: StringType, Length: length} }

// Numeric returns a NUMERIC type with the given precision and scale.
func Numeric(precision, scale int) Type {
	return Type{Kind: NumericType, Precision: precision, Scale: scale}
}

// Integer is the generic INTEGER type.
var Integer = Type{Kind: IntegerType}

// BigInteger is the generic BIGINT type.
var BigInteger = Type{Kind: BigIntegerType}

// Float is the generic FLOAT type.
var Float = Type{Kind: FloatType}

// Text is the generic TEXT type.
var Text = Type{Kind: TextType}

// Boolean is the generic BOOLEAN type.
var Boolean = Type{Kind: BooleanType}

// DateTime is the generic TIMESTAMP type.
var DateTime = Type{Kind: DateTimeType}

// Blob is the generic BLOB type.
var Blob = Type{Kind: BlobType}
