package sexp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Encode renders v in SEAP's canonical wire form:
//
//	integer atom: i<decimal length>:<decimal digits>
//	string  atom: s<byte length>:<bytes>
//	list:         ( element... )
//
// Every atom is length-prefixed so a reader never has to guess where it
// ends; lists need no separators between elements for the same reason.
// This is the only format the codec (seap/packet) emits; schemes are free
// to transport the resulting bytes however they like.
func Encode(v *Value) []byte {
	var buf []byte
	return appendEncoded(buf, v)
}

func appendEncoded(buf []byte, v *Value) []byte {
	switch v.Kind() {
	case KindInt:
		n, _ := v.Int()
		digits := strconv.FormatInt(n, 10)
		buf = append(buf, 'i')
		buf = append(buf, strconv.Itoa(len(digits))...)
		buf = append(buf, ':')
		buf = append(buf, digits...)
	case KindString:
		s, _ := v.Str()
		buf = append(buf, 's')
		buf = append(buf, strconv.Itoa(len(s))...)
		buf = append(buf, ':')
		buf = append(buf, s...)
	case KindList:
		items, _ := v.List()
		buf = append(buf, '(')
		for _, item := range items {
			buf = appendEncoded(buf, item)
		}
		buf = append(buf, ')')
	}
	return buf
}

// Decode reads one canonical-form value from r.
func Decode(r *bufio.Reader) (*Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case '(':
		var items []*Value
		for {
			peek, err := r.Peek(1)
			if err != nil {
				return nil, err
			}
			if peek[0] == ')' {
				_, _ = r.ReadByte()
				return NewList(items...), nil
			}
			item, err := Decode(r)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	case 'i', 's':
		length, err := readLength(r)
		if err != nil {
			return nil, err
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		if tag == 'i' {
			n, err := strconv.ParseInt(string(payload), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("sexp: malformed integer atom: %w", err)
			}
			return NewInt(n), nil
		}
		return NewString(string(payload)), nil
	default:
		return nil, fmt.Errorf("sexp: unexpected tag byte %q", tag)
	}
}

func readLength(r *bufio.Reader) (int, error) {
	digits, err := r.ReadBytes(':')
	if err != nil {
		return 0, fmt.Errorf("sexp: malformed length prefix: %w", err)
	}
	digits = digits[:len(digits)-1]
	n, err := strconv.Atoi(string(digits))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("sexp: malformed length prefix %q", digits)
	}
	return n, nil
}
