package workflow

import (
	"strings"

	"github.com/workflowforge/engine/internal/wferrors"
)

// ArgKind tags the six shapes an argument template or runtime value may
// take (spec §4.2, §9 "Dynamic arg types").
type ArgKind int

const (
	KindArgNull ArgKind = iota
	KindArgSeq
	KindArgMap
	KindArgStringRef
	KindArgCallable
	KindArgGenerator
)

// CallableFunc computes an ArgValue from the current context, for
// argument templates supplied as a callable (spec §4.2).
type CallableFunc func(ctx *Context) (ArgValue, error)

// GeneratorFunc drives a lazy, finite, non-restartable sequence of
// argument values; the job loop consumes it exactly once (spec §4.2,
// §9 "Generator-driven job iteration").
type GeneratorFunc func(ctx *Context) <-chan ArgValue

// ArgValue is the tagged union an argument template or runtime value is
// represented as.
type ArgValue struct {
	Kind ArgKind
	Seq  []any
	Map  map[string]any
	Str  string
	Fn   CallableFunc
	Gen  GeneratorFunc
}

// Null builds the null argument value.
func Null() ArgValue { return ArgValue{Kind: KindArgNull} }

// Seq builds a positional-sequence argument value.
func Seq(items ...any) ArgValue { return ArgValue{Kind: KindArgSeq, Seq: items} }

// Map builds a keyword-mapping argument value.
func Map(m map[string]any) ArgValue { return ArgValue{Kind: KindArgMap, Map: m} }

// Ref builds a string argument value, subject to the `$`-dereference rule
// at resolution time.
func Ref(s string) ArgValue { return ArgValue{Kind: KindArgStringRef, Str: s} }

// Callable builds a callable argument value.
func Callable(fn CallableFunc) ArgValue { return ArgValue{Kind: KindArgCallable, Fn: fn} }

// Generator builds a generator-driven argument value.
func Generator(fn GeneratorFunc) ArgValue { return ArgValue{Kind: KindArgGenerator, Gen: fn} }

func (v ArgValue) isNil() bool { return v.Kind == KindArgNull }

// materialize resolves Callable values by invoking them (recursively, so
// a callable may itself return another callable) and passes every other
// kind through unchanged. Generator values are left untouched — they are
// handled specially by the job loop, not merged.
func materialize(v ArgValue, ctx *Context) (ArgValue, error) {
	for v.Kind == KindArgCallable {
		next, err := v.Fn(ctx)
		if err != nil {
			return ArgValue{}, err
		}
		v = next
	}
	return v, nil
}

// normalizeTopLevel turns a bare string-ref into the one-element sequence
// it behaves like for merge purposes, so mergeValues only needs to reason
// about Null/Seq/Map.
func normalizeTopLevel(v ArgValue) ArgValue {
	if v.Kind == KindArgStringRef {
		return Seq(v.Str)
	}
	return v
}

// mergeValues implements spec §4.2's merge table: both null -> null; one
// null -> the other; both sequences -> runtime replaces template; both
// mappings -> template overlaid by runtime; sequence vs mapping -> error.
func mergeValues(template, runtime ArgValue) (ArgValue, error) {
	t := normalizeTopLevel(template)
	r := normalizeTopLevel(runtime)

	switch {
	case t.isNil() && r.isNil():
		return Null(), nil
	case t.isNil():
		return r, nil
	case r.isNil():
		return t, nil
	case t.Kind == KindArgSeq && r.Kind == KindArgSeq:
		return r, nil
	case t.Kind == KindArgMap && r.Kind == KindArgMap:
		merged := make(map[string]any, len(t.Map)+len(r.Map))
		for k, v := range t.Map {
			merged[k] = v
		}
		for k, v := range r.Map {
			merged[k] = v
		}
		return Map(merged), nil
	default:
		return ArgValue{}, wferrors.InvalidArgument("cannot merge a sequence argument with a mapping argument")
	}
}

// derefString applies the `$`-dereference rule to a single string: a
// leading "$$" escapes to a literal "$" (stripping one dollar sign, not
// dereferencing further); a leading single "$" dereferences the rest as a
// context key; otherwise the string is used as-is.
func derefString(s string, ctx *Context) (any, error) {
	switch {
	case strings.HasPrefix(s, "$$"):
		return s[1:], nil
	case strings.HasPrefix(s, "$"):
		key := s[1:]
		v, ok := ctx.Get(key)
		if !ok {
			return nil, wferrors.InvalidArgument("no such context key: " + key)
		}
		return v, nil
	default:
		return s, nil
	}
}

// derefStrings walks the merged value's top-level elements, applying
// derefString to every string it finds, and resolving every nested
// ArgValue it finds the same way (spec §4.2: "every string value inside
// the resulting sequence/mapping is subjected to the $-dereference
// rule"). A `Ref("$x")` built with the package's own helper is the
// documented way to reference a prior unit's result, so an element may
// arrive as a KindArgStringRef (or a KindArgCallable yielding one) rather
// than a bare Go string; both resolve to the same looked-up value.
func derefStrings(v ArgValue, ctx *Context) (ArgValue, error) {
	switch v.Kind {
	case KindArgNull:
		return v, nil
	case KindArgSeq:
		out := make([]any, len(v.Seq))
		for i, item := range v.Seq {
			resolved, err := resolveElement(item, ctx)
			if err != nil {
				return ArgValue{}, err
			}
			out[i] = resolved
		}
		return Seq(out...), nil
	case KindArgMap:
		out := make(map[string]any, len(v.Map))
		for k, item := range v.Map {
			resolved, err := resolveElement(item, ctx)
			if err != nil {
				return ArgValue{}, err
			}
			out[k] = resolved
		}
		return Map(out), nil
	default:
		return v, nil
	}
}

// resolveElement resolves one Seq/Map element to its final plain value:
// a bare string is passed through derefString; a nested ArgValue is
// materialized (invoking any callable) and then recursively resolved —
// a KindArgStringRef dereferences, a KindArgSeq/KindArgMap flattens to
// the corresponding plain slice/map via derefStrings, and KindArgNull
// becomes nil. Anything else (ints, bools, plain slices/maps a caller
// built by hand) passes through unchanged.
func resolveElement(item any, ctx *Context) (any, error) {
	switch x := item.(type) {
	case string:
		return derefString(x, ctx)
	case ArgValue:
		m, err := materialize(x, ctx)
		if err != nil {
			return nil, err
		}
		switch m.Kind {
		case KindArgStringRef:
			return derefString(m.Str, ctx)
		case KindArgNull:
			return nil, nil
		case KindArgSeq, KindArgMap:
			resolved, err := derefStrings(m, ctx)
			if err != nil {
				return nil, err
			}
			if resolved.Kind == KindArgSeq {
				return resolved.Seq, nil
			}
			return resolved.Map, nil
		default:
			return m, nil
		}
	default:
		return item, nil
	}
}

// Resolve runs the full merge-and-resolve pipeline for one (template,
// runtime) pair: materialize both, merge, then dereference strings. It
// does not handle the generator case — callers must check
// materialize(template) first and branch to the job loop's generator
// path when it yields KindArgGenerator (spec §4.2 last paragraph).
func Resolve(template, runtime ArgValue, ctx *Context) (ArgValue, error) {
	t, err := materialize(template, ctx)
	if err != nil {
		return ArgValue{}, err
	}
	r, err := materialize(runtime, ctx)
	if err != nil {
		return ArgValue{}, err
	}
	merged, err := mergeValues(t, r)
	if err != nil {
		return ArgValue{}, err
	}
	return derefStrings(merged, ctx)
}

// toCallArgs converts a resolved ArgValue into the positional/keyword
// shape used to invoke a unit's executable. Go has no **kwargs: a mapping
// value is passed to the executable as a single map[string]any argument
// rather than expanded keyword parameters (see DESIGN.md for this
// deviation).
func toCallArgs(v ArgValue) (positional []any, keyword map[string]any) {
	switch v.Kind {
	case KindArgSeq:
		return v.Seq, nil
	case KindArgMap:
		return nil, v.Map
	case KindArgStringRef:
		return []any{v.Str}, nil
	default:
		return nil, nil
	}
}
