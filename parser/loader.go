package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/boletopdf/filters"
	"github.com/wudi/boletopdf/ir/raw"
	"github.com/wudi/boletopdf/scanner"
	"github.com/wudi/boletopdf/xref"
)

const maxNesting = 256

// loader reads objects from the file bytes. It implements
// xref.ObjectReader so the resolver can parse trailers and xref streams
// with the same grammar.
type loader struct {
	data     []byte
	cfg      Config
	pipeline *filters.Pipeline
	table    *xref.Table

	objStreams map[int]*objectStream
	lengthBusy map[raw.ObjectRef]bool
}

type objectStream struct {
	data    []byte
	first   int64
	offsets map[int]int64 // object number -> offset relative to /First
}

func newLoader(data []byte, cfg Config) *loader {
	return &loader{
		data:       data,
		cfg:        cfg,
		pipeline:   filters.NewDefaultPipeline(cfg.Limits),
		objStreams: make(map[int]*objectStream),
		lengthBusy: make(map[raw.ObjectRef]bool),
	}
}

func (l *loader) ReadDirectAt(offset int64) (raw.Object, error) {
	s := scanner.New(l.data, l.cfg.Scanner)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return parseObject(s, tok, 0)
}

func (l *loader) ReadIndirectAt(offset int64) (raw.ObjectRef, raw.Object, error) {
	s := scanner.New(l.data, l.cfg.Scanner)
	if err := s.Seek(offset); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	num, err := s.Next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	gen, err := s.Next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	kw, err := s.Next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if num.Type != scanner.TokenNumber || gen.Type != scanner.TokenNumber || kw.Str != "obj" {
		return raw.ObjectRef{}, nil, fmt.Errorf("no object header at offset %d", offset)
	}
	ref := raw.ObjectRef{Num: int(num.Int), Gen: int(gen.Int)}

	tok, err := s.Next()
	if err != nil {
		return ref, nil, err
	}
	obj, err := parseObject(s, tok, 0)
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	dict, isDict := obj.(*raw.DictObj)
	if !isDict {
		return ref, obj, nil
	}
	s.SetNextStreamLength(l.streamLength(dict))
	tok, err = s.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ref, dict, nil
		}
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	if tok.Type == scanner.TokenStream {
		dict.Set("Length", raw.NumberInt(int64(len(tok.Bytes))))
		return ref, raw.NewStream(dict, tok.Bytes), nil
	}
	return ref, dict, nil
}

// streamLength resolves /Length, which may be an indirect reference. -1
// tells the scanner to search for endstream.
func (l *loader) streamLength(dict *raw.DictObj) int64 {
	o, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	if v, ok := raw.NumberValue(o); ok {
		return int64(v)
	}
	ref, ok := o.(raw.RefObj)
	if !ok || l.table == nil || l.lengthBusy[ref.R] {
		return -1
	}
	l.lengthBusy[ref.R] = true
	defer delete(l.lengthBusy, ref.R)
	_, obj, err := l.load(ref.R.Num)
	if err != nil {
		return -1
	}
	if v, ok := raw.NumberValue(obj); ok {
		return int64(v)
	}
	return -1
}

func (l *loader) DecodeStream(s *raw.StreamObj) ([]byte, error) {
	names, params := filters.ExtractFilters(s.Dict)
	if len(names) == 0 {
		return s.Data, nil
	}
	return l.pipeline.Decode(context.Background(), s.Data, names, params)
}

// load returns object num using the resolved xref table.
func (l *loader) load(num int) (raw.ObjectRef, raw.Object, error) {
	entry, ok := l.table.Lookup(num)
	if !ok || entry.Kind == xref.EntryFree {
		return raw.ObjectRef{}, nil, fmt.Errorf("object %d not in xref", num)
	}
	if entry.Kind == xref.EntryCompressed {
		obj, err := l.loadFromObjectStream(num, entry.Stream)
		return raw.ObjectRef{Num: num}, obj, err
	}
	ref, obj, err := l.ReadIndirectAt(entry.Offset)
	if err != nil {
		return ref, nil, err
	}
	if ref.Num != num {
		return ref, nil, fmt.Errorf("xref points object %d at %s", num, ref)
	}
	return ref, obj, nil
}

func (l *loader) loadFromObjectStream(num, streamNum int) (raw.Object, error) {
	stm, err := l.objectStream(streamNum)
	if err != nil {
		return nil, err
	}
	off, ok := stm.offsets[num]
	if !ok {
		return nil, fmt.Errorf("object %d missing from object stream %d", num, streamNum)
	}
	s := scanner.New(stm.data, l.cfg.Scanner)
	if err := s.Seek(stm.first + off); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return parseObject(s, tok, 0)
}

func (l *loader) objectStream(streamNum int) (*objectStream, error) {
	if stm, ok := l.objStreams[streamNum]; ok {
		return stm, nil
	}
	entry, ok := l.table.Lookup(streamNum)
	if !ok || entry.Kind != xref.EntryInUse {
		return nil, fmt.Errorf("object stream %d not found", streamNum)
	}
	_, obj, err := l.ReadIndirectAt(entry.Offset)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object %d is not an object stream", streamNum)
	}
	data, err := l.DecodeStream(stream)
	if err != nil {
		return nil, fmt.Errorf("decode object stream %d: %w", streamNum, err)
	}
	n, _ := raw.NumberValue(stream.Dict.KV["N"])
	first, _ := raw.NumberValue(stream.Dict.KV["First"])
	stm := &objectStream{data: data, first: int64(first), offsets: make(map[int]int64, int(n))}
	s := scanner.New(data, l.cfg.Scanner)
	for i := 0; i < int(n); i++ {
		numTok, err1 := s.Next()
		offTok, err2 := s.Next()
		if err1 != nil || err2 != nil || numTok.Type != scanner.TokenNumber || offTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("object stream %d header truncated", streamNum)
		}
		stm.offsets[int(numTok.Int)] = offTok.Int
	}
	l.objStreams[streamNum] = stm
	return stm, nil
}

// parseObject converts tok (and what follows it) into a raw object.
func parseObject(s *scanner.Scanner, tok scanner.Token, depth int) (raw.Object, error) {
	if depth > maxNesting {
		return nil, errors.New("object nesting too deep")
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), int(tok.Gen)), nil
	case scanner.TokenArray:
		return parseArray(s, depth)
	case scanner.TokenDict:
		return parseDict(s, depth)
	}
	return nil, fmt.Errorf("unexpected token %q at %d", tok.String(), tok.Pos)
}

func parseArray(s *scanner.Scanner, depth int) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated array: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		item, err := parseObject(s, tok, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(s *scanner.Scanner, depth int) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("dictionary key is %q at %d", tok.String(), tok.Pos)
		}
		key := tok.Str
		tok, err = s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			// Key without value: treat as null and close.
			return dict, nil
		}
		val, err := parseObject(s, tok, depth+1)
		if err != nil {
			return nil, err
		}
		if _, isNull := val.(raw.NullObj); isNull {
			continue
		}
		dict.Set(key, val)
	}
}
