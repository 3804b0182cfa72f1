package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/subst/internal/config"
	substerrors "github.com/systmms/subst/internal/errors"
	"github.com/systmms/subst/internal/logging"
	"github.com/systmms/subst/internal/placeholder"
	"github.com/systmms/subst/pkg/source"
)

func newTestEngine(t *testing.T, srcs ...source.Source) *Engine {
	t.Helper()
	cfg := &config.Config{
		Logger: logging.New(false, true),
		Definition: &config.Definition{
			CacheTimeout: config.DefaultCacheTimeout,
			Sources:      map[string]config.SourceConfig{},
		},
	}
	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	for _, s := range srcs {
		e.Register(s)
	}
	return e
}

func mustParse(t *testing.T, text string) placeholder.Placeholder {
	t.Helper()
	p, err := placeholder.Parse(text)
	require.NoError(t, err)
	return p
}

func TestResolveDeclaredSourceWins(t *testing.T) {
	env := source.NewFake("env").WithValue("DB_HOST", "from-env")
	file := source.NewFake("file").WithValue("DB_HOST", "from-file")
	e := newTestEngine(t, env, file)

	value, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<db:file#DB_HOST>"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)

	value, err = e.ResolvePlaceholder(context.Background(), mustParse(t, "<db2:env#DB_HOST>"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestResolveFallsThroughChain(t *testing.T) {
	env := source.NewFake("env").WithValue("API_KEY", "from-env")
	e := newTestEngine(t, env)

	// vault is not registered; the chain falls through to env.
	value, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<key:vault#API_KEY>"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestResolveSourceErrorStillFallsThrough(t *testing.T) {
	vault := source.NewFake("vault").WithFailure("API_KEY", errors.New("sealed"))
	env := source.NewFake("env").WithValue("API_KEY", "from-env")
	e := newTestEngine(t, vault, env)

	value, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<key:vault#API_KEY>"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestResolveDefaultApplies(t *testing.T) {
	e := newTestEngine(t, source.NewFake("env"))

	value, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<x:env#MISSING|fallback_value>"))
	require.NoError(t, err)
	assert.Equal(t, "fallback_value", value)
}

func TestResolveEmptyDefaultApplies(t *testing.T) {
	e := newTestEngine(t, source.NewFake("env"))

	value, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<x:env#MISSING|>"))
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestResolveUnresolved(t *testing.T) {
	e := newTestEngine(t, source.NewFake("env"))

	_, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<x:env#MISSING>"))
	var unresolved substerrors.UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "x", unresolved.Name)
	assert.Equal(t, "env", unresolved.Source)
	assert.Equal(t, "MISSING", unresolved.Key)
}

func TestResolveUnresolvedCarriesLastError(t *testing.T) {
	env := source.NewFake("env").WithFailure("KEY", errors.New("backend down"))
	e := newTestEngine(t, env)

	_, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<x:env#KEY>"))
	var unresolved substerrors.UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	require.NotNil(t, unresolved.LastErr)
	assert.Contains(t, unresolved.LastErr.Error(), "backend down")
}

func TestResolveUnresolvedCarriesLastMiss(t *testing.T) {
	e := newTestEngine(t, source.NewFake("env"))

	_, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<x:env#MISSING>"))
	var unresolved substerrors.UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	require.NotNil(t, unresolved.LastErr)
	assert.Contains(t, unresolved.LastErr.Error(), "key not found: MISSING")
}

func TestResolveLastErrorIsFromLastSource(t *testing.T) {
	env := source.NewFake("env").WithFailure("KEY", errors.New("sealed"))
	file := source.NewFake("file")
	e := newTestEngine(t, env, file)

	// env fails hard, then file misses; the miss is the last error seen.
	_, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<x:env#KEY>"))
	var unresolved substerrors.UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	require.NotNil(t, unresolved.LastErr)
	assert.Contains(t, unresolved.LastErr.Error(), "key not found")
	assert.NotContains(t, unresolved.LastErr.Error(), "sealed")
}

func TestResolveCachesWithinTTL(t *testing.T) {
	env := source.NewFake("env").WithValue("DB_HOST", "v1")
	e := newTestEngine(t, env)

	p := mustParse(t, "<db:env#DB_HOST>")
	for i := 0; i < 3; i++ {
		value, err := e.ResolvePlaceholder(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "v1", value)
	}
	assert.Equal(t, 1, env.Calls("DB_HOST"))
}

func TestResolveRefetchesAfterExpiry(t *testing.T) {
	env := source.NewFake("env").WithValue("DB_HOST", "v1")
	e := newTestEngine(t, env)

	now := time.Now()
	e.resolved.SetNow(func() time.Time { return now })

	p := mustParse(t, "<db:env#DB_HOST>")
	_, err := e.ResolvePlaceholder(context.Background(), p)
	require.NoError(t, err)

	now = now.Add(time.Duration(config.DefaultCacheTimeout) * time.Second)
	env.WithValue("DB_HOST", "v2")

	value, err := e.ResolvePlaceholder(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
	assert.Equal(t, 2, env.Calls("DB_HOST"))
}

func TestResolveDefaultNeverCached(t *testing.T) {
	env := source.NewFake("env")
	e := newTestEngine(t, env)

	p := mustParse(t, "<x:env#MISSING|fb>")
	for i := 0; i < 2; i++ {
		value, err := e.ResolvePlaceholder(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "fb", value)
	}
	// Every call walks the chain again; a later put of the key is seen
	// immediately.
	assert.Equal(t, 2, env.Calls("MISSING"))
	env.WithValue("MISSING", "now-present")

	value, err := e.ResolvePlaceholder(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "now-present", value)
}

func TestResolveTextSubstitutes(t *testing.T) {
	env := source.NewFake("env").WithValue("TEST_VAR", "World")
	e := newTestEngine(t, env)

	out, err := e.ResolveText(context.Background(), "Hello <user:env#TEST_VAR>!")
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", out)
}

func TestResolveTextNoPlaceholders(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.ResolveText(context.Background(), "plain text, no markers")
	require.NoError(t, err)
	assert.Equal(t, "plain text, no markers", out)
}

func TestResolveTextDuplicatesResolveOnce(t *testing.T) {
	env := source.NewFake("env").WithValue("TOKEN", "t-1")
	e := newTestEngine(t, env)

	out, err := e.ResolveText(context.Background(), "<a:env#TOKEN> and again <a:env#TOKEN>")
	require.NoError(t, err)
	assert.Equal(t, "t-1 and again t-1", out)
	assert.Equal(t, 1, env.Calls("TOKEN"))
}

func TestResolveTextValueContainingPlaceholderSyntax(t *testing.T) {
	env := source.NewFake("env").
		WithValue("A", "<b:env#B>").
		WithValue("B", "X")
	e := newTestEngine(t, env)

	// A value that looks like another placeholder is inserted verbatim,
	// never re-substituted.
	out, err := e.ResolveText(context.Background(), "<a:env#A> / <b:env#B>")
	require.NoError(t, err)
	assert.Equal(t, "<b:env#B> / X", out)
}

func TestResolveTextDefaultContainingPlaceholderSyntax(t *testing.T) {
	env := source.NewFake("env").WithValue("B", "X")
	e := newTestEngine(t, env)

	out, err := e.ResolveText(context.Background(), "<a:env#A|x<y> <b:env#B>")
	require.NoError(t, err)
	assert.Equal(t, "x<y X", out)
}

func TestResolveTextAllOrNothing(t *testing.T) {
	env := source.NewFake("env").WithValue("GOOD", "ok")
	e := newTestEngine(t, env)

	in := "good: <a:env#GOOD>, bad: <b:env#BAD>"
	out, err := e.ResolveText(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, in, out)

	var unresolved substerrors.UnresolvedError
	assert.ErrorAs(t, err, &unresolved)
}

func TestResolveTextMalformedLeftVerbatim(t *testing.T) {
	e := newTestEngine(t)

	in := "broken <name:env#> stays"
	out, err := e.ResolveText(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnresolvedErrorTextIsMasked(t *testing.T) {
	leaked := "ZmFrZXRva2VuZmFrZXRva2VuZmFrZQ"
	env := source.NewFake("env").WithFailure("KEY", errors.New("upstream said: "+leaked))
	e := newTestEngine(t, env)

	_, err := e.ResolvePlaceholder(context.Background(), mustParse(t, "<x:env#KEY>"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), leaked)
	assert.Contains(t, err.Error(), logging.MaskToken)
}

func TestRefreshCacheDropsResolvedValues(t *testing.T) {
	env := source.NewFake("env").WithValue("DB_HOST", "v1")
	e := newTestEngine(t, env)

	p := mustParse(t, "<db:env#DB_HOST>")
	_, err := e.ResolvePlaceholder(context.Background(), p)
	require.NoError(t, err)

	env.WithValue("DB_HOST", "v2")
	e.RefreshCache()
	assert.Equal(t, 1, env.Refreshed())

	value, err := e.ResolvePlaceholder(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
}

func TestCloseCleansUpSources(t *testing.T) {
	env := source.NewFake("env")
	e := newTestEngine(t, env)

	require.NoError(t, e.Close())
	assert.True(t, env.Cleaned())
	assert.Empty(t, e.Sources())
}

func TestNewDropsFailingSource(t *testing.T) {
	cfg := &config.Config{
		Logger: logging.New(false, true),
		Definition: &config.Definition{
			CacheTimeout: config.DefaultCacheTimeout,
			Sources: map[string]config.SourceConfig{
				"env": {Enabled: true},
				"file": {Enabled: true, Settings: map[string]interface{}{
					"base_dir": "/nonexistent/dir",
				}},
			},
		},
	}
	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"env"}, e.Sources())
}
