// Package contentstream reads and writes page and appearance content
// streams.
package contentstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/scanner"
)

// Operation is one operator with the operands that preceded it.
type Operation struct {
	Operator string
	Operands []raw.Object
}

// OperatorHandler reacts to a single operator during Process.
type OperatorHandler func(op Operation) error

// Processor dispatches parsed operations to registered handlers.
// Operators without a handler are skipped.
type Processor struct {
	handlers map[string]OperatorHandler
}

func NewProcessor() *Processor { return &Processor{handlers: make(map[string]OperatorHandler)} }

func (p *Processor) RegisterHandler(op string, h OperatorHandler) { p.handlers[op] = h }

func (p *Processor) Process(stream []byte) error {
	ops, err := Parse(stream)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if h, ok := p.handlers[op.Operator]; ok {
			if err := h(op); err != nil {
				return fmt.Errorf("operator %s: %w", op.Operator, err)
			}
		}
	}
	return nil
}

var errDangling = errors.New("dangling operands")

// Parse splits a content stream into operations. Inline images are not
// supported; none of the streams this package produces or inspects carry
// them.
func Parse(data []byte) ([]Operation, error) {
	sc := scanner.New(data, scanner.Config{})
	var ops []Operation
	var operands []raw.Object
	for {
		tok, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword {
			ops = append(ops, Operation{Operator: tok.Str, Operands: operands})
			operands = nil
			continue
		}
		obj, err := operand(sc, tok)
		if err != nil {
			return nil, err
		}
		operands = append(operands, obj)
	}
	if len(operands) > 0 {
		return ops, fmt.Errorf("%w: %d", errDangling, len(operands))
	}
	return ops, nil
}

func operand(sc *scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			next, err := sc.Next()
			if err != nil {
				return nil, fmt.Errorf("unterminated array: %w", err)
			}
			if next.Type == scanner.TokenKeyword && next.Str == "]" {
				return arr, nil
			}
			item, err := operand(sc, next)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		dict := raw.Dict()
		for {
			key, err := sc.Next()
			if err != nil {
				return nil, fmt.Errorf("unterminated dictionary: %w", err)
			}
			if key.Type == scanner.TokenKeyword && key.Str == ">>" {
				return dict, nil
			}
			if key.Type != scanner.TokenName {
				return nil, fmt.Errorf("dictionary key %s", key)
			}
			next, err := sc.Next()
			if err != nil {
				return nil, err
			}
			val, err := operand(sc, next)
			if err != nil {
				return nil, err
			}
			dict.Set(key.Str, val)
		}
	}
	return nil, fmt.Errorf("unexpected token %s at %d", tok, tok.Pos)
}
