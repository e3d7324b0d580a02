package workflow

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestMergeValuesBothNullYieldsNull(t *testing.T) {
	v, err := mergeValues(Null(), Null())
	require.NoError(t, err)
	require.Equal(t, KindArgNull, v.Kind)
}

func TestMergeValuesNullTemplateYieldsRuntime(t *testing.T) {
	v, err := mergeValues(Null(), Seq(1, 2))
	require.NoError(t, err)
	require.Equal(t, []any{1, 2}, v.Seq)
}

func TestMergeValuesNullRuntimeYieldsTemplate(t *testing.T) {
	v, err := mergeValues(Seq(1, 2), Null())
	require.NoError(t, err)
	require.Equal(t, []any{1, 2}, v.Seq)
}

func TestMergeValuesSeqVsSeqRuntimeReplacesTemplate(t *testing.T) {
	v, err := mergeValues(Seq(1, 2, 3), Seq("a"))
	require.NoError(t, err)
	require.Equal(t, []any{"a"}, v.Seq)
}

func TestMergeValuesMapVsMapRuntimeOverlaysTemplate(t *testing.T) {
	v, err := mergeValues(Map(map[string]any{"a": 1, "b": 2}), Map(map[string]any{"b": 3, "c": 4}))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, v.Map)
}

func TestMergeValuesSeqVsMapFails(t *testing.T) {
	_, err := mergeValues(Seq(1), Map(map[string]any{"a": 1}))
	require.Error(t, err)
}

func TestMergeValuesMapVsSeqFails(t *testing.T) {
	_, err := mergeValues(Map(map[string]any{"a": 1}), Seq(1))
	require.Error(t, err)
}

func TestMergeValuesNormalizesBareStringRefToOneElementSeq(t *testing.T) {
	v, err := mergeValues(Ref("$x"), Null())
	require.NoError(t, err)
	require.Equal(t, KindArgSeq, v.Kind)
	require.Equal(t, []any{"$x"}, v.Seq)
}

func TestDerefStringDollarDollarEscapesOneLevel(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	got, err := derefString("$$not.a.ref", ctx)
	require.NoError(t, err)
	require.Equal(t, "$not.a.ref", got)
}

func TestDerefStringSingleDollarLooksUpContextKey(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	ctx.Set("step.result", 42)
	got, err := derefString("$step.result", ctx)
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestDerefStringMissingKeyFails(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	_, err := derefString("$nope", ctx)
	require.Error(t, err)
}

func TestDerefStringPlainStringPassesThrough(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	got, err := derefString("plain", ctx)
	require.NoError(t, err)
	require.Equal(t, "plain", got)
}

func TestResolveIsIdempotentOnAlreadyResolvedValues(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	ctx.Set("a.result", 7)

	once, err := Resolve(Seq(Ref("$a.result")), Null(), ctx)
	require.NoError(t, err)
	require.Equal(t, []any{7}, once.Seq)

	twice, err := Resolve(once, Null(), ctx)
	require.NoError(t, err)
	require.Equal(t, once.Seq, twice.Seq)
}

func TestResolveMaterializesCallableTemplateRecursively(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	inner := Callable(func(ctx *Context) (ArgValue, error) { return Seq(1, 2), nil })
	outer := Callable(func(ctx *Context) (ArgValue, error) { return inner, nil })

	v, err := Resolve(outer, Null(), ctx)
	require.NoError(t, err)
	require.Equal(t, []any{1, 2}, v.Seq)
}

func TestToCallArgsSeqYieldsPositional(t *testing.T) {
	pos, kw := toCallArgs(Seq(1, 2, 3))
	require.Equal(t, []any{1, 2, 3}, pos)
	require.Nil(t, kw)
}

func TestToCallArgsMapYieldsKeyword(t *testing.T) {
	pos, kw := toCallArgs(Map(map[string]any{"a": 1}))
	require.Nil(t, pos)
	require.Equal(t, map[string]any{"a": 1}, kw)
}

func TestToCallArgsNullYieldsNeither(t *testing.T) {
	pos, kw := toCallArgs(Null())
	require.Nil(t, pos)
	require.Nil(t, kw)
}
