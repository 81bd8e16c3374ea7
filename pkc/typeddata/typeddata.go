// Package typeddata implements EIP-712 structured data hashing.
//
// A TypedData value is reduced to a single 32-byte hash:
//
//	keccak256(0x19 || 0x01 || domainSeparator || hashStruct(primaryType, message))
//
// where hashStruct(T, m) = keccak256(typeHash(T) || encodeData(T, m)).
// Dynamic values (string, bytes, arrays) enter the encoding as their keccak256
// hash, nested structs as their hashStruct, so every field occupies exactly
// one 32-byte word.
package typeddata

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/xellDart/ERC721-IP/model"
)

var (
	ErrUnknownType   = errors.New("typeddata: unknown type")
	ErrMissingField  = errors.New("typeddata: missing field")
	ErrInvalidValue  = errors.New("typeddata: invalid value")
	ErrInputTooLong  = errors.New("typeddata: input exceeds fixed width")
	ErrValueOverflow = errors.New("typeddata: integer out of range")
)

// Field is one member of a struct type, in declaration order.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Types maps struct names to their ordered fields.
type Types map[string][]Field

// Message holds the values of one struct instance keyed by field name.
// Nested structs are Message values, arrays are Go slices.
type Message map[string]any

// TypedData is a complete signable payload.
type TypedData struct {
	Types       Types   `json:"types"`
	PrimaryType string  `json:"primaryType"`
	Domain      Domain  `json:"domain"`
	Message     Message `json:"message"`
}

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// Hash returns the digest that wallets sign for this payload.
func (td TypedData) Hash() ([32]byte, error) {
	msg, err := td.Types.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return [32]byte{}, err
	}
	sep := td.Domain.Separator()
	return Keccak256([]byte{0x19, 0x01}, sep[:], msg[:]), nil
}

// EncodeType renders the canonical type string of primary followed by all
// referenced struct types sorted by name.
func (t Types) EncodeType(primary string) (string, error) {
	if _, ok := t[primary]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, primary)
	}
	deps := map[string]bool{}
	if err := t.collectDeps(primary, deps); err != nil {
		return "", err
	}
	delete(deps, primary)
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range append([]string{primary}, names...) {
		b.WriteString(name)
		b.WriteByte('(')
		for i, f := range t[name] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Type)
			b.WriteByte(' ')
			b.WriteString(f.Name)
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}

func (t Types) collectDeps(name string, seen map[string]bool) error {
	if seen[name] {
		return nil
	}
	seen[name] = true
	for _, f := range t[name] {
		base := baseType(f.Type)
		if _, ok := t[base]; ok {
			if err := t.collectDeps(base, seen); err != nil {
				return err
			}
			continue
		}
		if !isAtomic(base) {
			return fmt.Errorf("%w: %s", ErrUnknownType, base)
		}
	}
	return nil
}

// TypeHash is keccak256(EncodeType(primary)).
func (t Types) TypeHash(primary string) ([32]byte, error) {
	enc, err := t.EncodeType(primary)
	if err != nil {
		return [32]byte{}, err
	}
	return Keccak256([]byte(enc)), nil
}

// HashStruct returns keccak256(typeHash || encodeData) for one struct value.
func (t Types) HashStruct(primary string, data Message) ([32]byte, error) {
	enc, err := t.EncodeData(primary, data)
	if err != nil {
		return [32]byte{}, err
	}
	return Keccak256(enc), nil
}

// EncodeData returns typeHash followed by one 32-byte word per field.
func (t Types) EncodeData(primary string, data Message) ([]byte, error) {
	th, err := t.TypeHash(primary)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(th[:])
	for _, f := range t[primary] {
		v, ok := data[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, primary, f.Name)
		}
		word, err := t.encodeValue(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", primary, f.Name, err)
		}
		buf.Write(word[:])
	}
	return buf.Bytes(), nil
}

func (t Types) encodeValue(typ string, v any) ([32]byte, error) {
	var word [32]byte

	if elem, ok := strings.CutSuffix(typ, "[]"); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return word, fmt.Errorf("%w: %s wants a slice, got %T", ErrInvalidValue, typ, v)
		}
		var buf bytes.Buffer
		for i := 0; i < rv.Len(); i++ {
			w, err := t.encodeValue(elem, rv.Index(i).Interface())
			if err != nil {
				return word, fmt.Errorf("[%d]: %w", i, err)
			}
			buf.Write(w[:])
		}
		return Keccak256(buf.Bytes()), nil
	}

	if _, ok := t[typ]; ok {
		m, ok := asMessage(v)
		if !ok {
			return word, fmt.Errorf("%w: %s wants a struct, got %T", ErrInvalidValue, typ, v)
		}
		return t.HashStruct(typ, m)
	}

	switch {
	case typ == "string":
		s, ok := v.(string)
		if !ok {
			return word, fmt.Errorf("%w: string, got %T", ErrInvalidValue, v)
		}
		return Keccak256([]byte(s)), nil

	case typ == "bytes":
		b, ok := v.([]byte)
		if !ok {
			return word, fmt.Errorf("%w: bytes, got %T", ErrInvalidValue, v)
		}
		return Keccak256(b), nil

	case typ == "bool":
		b, ok := v.(bool)
		if !ok {
			return word, fmt.Errorf("%w: bool, got %T", ErrInvalidValue, v)
		}
		if b {
			word[31] = 1
		}
		return word, nil

	case typ == "address":
		a, err := toAddress(v)
		if err != nil {
			return word, err
		}
		copy(word[12:], a[:])
		return word, nil

	case strings.HasPrefix(typ, "bytes"):
		n, err := strconv.Atoi(typ[len("bytes"):])
		if err != nil || n < 1 || n > 32 {
			return word, fmt.Errorf("%w: %s", ErrUnknownType, typ)
		}
		b, err := toFixedBytes(v)
		if err != nil {
			return word, err
		}
		if len(b) > n {
			return word, fmt.Errorf("%w: %d bytes into %s", ErrInputTooLong, len(b), typ)
		}
		copy(word[:], b)
		return word, nil

	case strings.HasPrefix(typ, "uint"), strings.HasPrefix(typ, "int"):
		signed := strings.HasPrefix(typ, "int")
		bits, err := intBits(typ)
		if err != nil {
			return word, err
		}
		x, err := toBig(v)
		if err != nil {
			return word, err
		}
		return encodeInt(x, bits, signed)
	}

	return word, fmt.Errorf("%w: %s", ErrUnknownType, typ)
}

func baseType(typ string) string {
	for {
		next, ok := strings.CutSuffix(typ, "[]")
		if !ok {
			return typ
		}
		typ = next
	}
}

func isAtomic(typ string) bool {
	switch {
	case typ == "string", typ == "bytes", typ == "bool", typ == "address":
		return true
	case strings.HasPrefix(typ, "bytes"):
		n, err := strconv.Atoi(typ[len("bytes"):])
		return err == nil && n >= 1 && n <= 32
	case strings.HasPrefix(typ, "uint"), strings.HasPrefix(typ, "int"):
		_, err := intBits(typ)
		return err == nil
	}
	return false
}

func intBits(typ string) (int, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(typ, "u"), "int")
	if digits == "" {
		return 256, nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 8 || n > 256 || n%8 != 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return n, nil
}

var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

func encodeInt(x *big.Int, bits int, signed bool) ([32]byte, error) {
	var word [32]byte
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	if signed {
		half := new(big.Int).Rsh(limit, 1)
		if x.Cmp(half) >= 0 || x.Cmp(new(big.Int).Neg(half)) < 0 {
			return word, fmt.Errorf("%w: %s does not fit int%d", ErrValueOverflow, x, bits)
		}
	} else if x.Sign() < 0 || x.Cmp(limit) >= 0 {
		return word, fmt.Errorf("%w: %s does not fit uint%d", ErrValueOverflow, x, bits)
	}
	if x.Sign() < 0 {
		x = new(big.Int).Add(two256, x)
	}
	x.FillBytes(word[:])
	return word, nil
}

func toBig(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrInvalidValue)
		}
		return new(big.Int).Set(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int8:
		return big.NewInt(int64(n)), nil
	case int16:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case string:
		x, ok := new(big.Int).SetString(n, 0)
		if !ok {
			return nil, fmt.Errorf("%w: integer %q", ErrInvalidValue, n)
		}
		return x, nil
	}
	return nil, fmt.Errorf("%w: integer, got %T", ErrInvalidValue, v)
}

func toAddress(v any) (model.Address, error) {
	switch a := v.(type) {
	case model.Address:
		return a, nil
	case string:
		parsed, err := model.ParseAddress(a)
		if err != nil {
			return model.Address{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return parsed, nil
	}
	return model.Address{}, fmt.Errorf("%w: address, got %T", ErrInvalidValue, v)
}

func toFixedBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case [32]byte:
		return b[:], nil
	case model.Digest:
		return b[:], nil
	}
	return nil, fmt.Errorf("%w: fixed bytes, got %T", ErrInvalidValue, v)
}

func asMessage(v any) (Message, bool) {
	switch m := v.(type) {
	case Message:
		return m, true
	case map[string]any:
		return Message(m), true
	}
	return nil, false
}
