package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magic-framework/magic/internal/errors"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseLines(t *testing.T) {
	values := ParseLines("dist  build/out\n\n# comment\nsrc\tapp\r\nassets my assets\nflag\n")

	assert.Equal(t, Values{
		"dist":   "build/out",
		"src":    "app",
		"assets": "my assets",
		"flag":   "",
	}, values)
}

func TestDumpCanonicalOrder(t *testing.T) {
	values := Values{
		"port":    "3000",
		"systems": "systems",
		"dist":    "public",
		"bundler": "bun",
		"src":     "src",
		"assets":  "assets",
	}

	assert.Equal(t, "dist public\nsrc src\nassets assets\nsystems systems\nbundler bun\nport 3000\n", Dump(values))
	assert.Equal(t, values, ParseLines(Dump(values)))
}

func TestStoreDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Options{ProjectDir: dir})

	values, err := store.Reload()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), values)
	assert.False(t, store.Exists())

	roots := store.CurrentRoots()
	assert.Equal(t, filepath.Join(dir, "assets"), roots.Assets.Path)
	assert.Equal(t, filepath.Join(dir, "systems"), roots.Source.Path)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), roots.ConfigFile.Path)
	assert.False(t, roots.Assets.Required)
	assert.False(t, roots.Source.Required)
	assert.False(t, roots.ConfigFile.Required)
}

func TestStoreLoadsLineFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFileName, "dist out\nsystems game/systems\nport 8080\n")

	store := NewStore(Options{ProjectDir: dir})
	values := store.Load()

	assert.Equal(t, "out", values.Get(KeyDist))
	assert.Equal(t, "game/systems", values.Get(KeySystems))
	assert.Equal(t, 8080, values.Int(KeyPort))
	assert.Equal(t, "src", values.Get(KeySrc))
	assert.True(t, values.Bool(KeyMinify))
	assert.Equal(t, filepath.Join(dir, "game/systems"), store.CurrentRoots().Source.Path)
}

func TestStoreLoadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "magic.yaml", "dist: www\nminify: false\nport: 4000\n")

	store := NewStore(Options{ProjectDir: dir, FileName: "magic.yaml"})
	values, err := store.Reload()
	require.NoError(t, err)

	assert.Equal(t, "www", values.Get(KeyDist))
	assert.False(t, values.Bool(KeyMinify))
	assert.Equal(t, 4000, values.Int(KeyPort))
}

func TestStoreRejectsNestedYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "magic.yml", "server:\n  port: 3000\n")

	store := NewStore(Options{ProjectDir: dir, FileName: "magic.yml"})
	values, err := store.Reload()

	require.Error(t, err)
	assert.Equal(t, errors.KindConfigReload, errors.KindOf(err))
	assert.Equal(t, Defaults(), values)
}

func TestStorePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFileName, "dist from-file\nsrc from-file\nassets from-file\n")
	t.Setenv("MAGIC_SRC", "from-env")
	t.Setenv("MAGIC_ASSETS", "from-env")

	store := NewStore(Options{ProjectDir: dir, Overrides: map[string]string{KeyAssets: "from-flag", KeyDist: ""}})
	values := store.Load()

	assert.Equal(t, "from-file", values.Get(KeyDist))
	assert.Equal(t, "from-env", values.Get(KeySrc))
	assert.Equal(t, "from-flag", values.Get(KeyAssets))
}

func TestStoreReloadKeepsPreviousValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, DefaultFileName, "systems first\n")

	store := NewStore(Options{ProjectDir: dir})
	require.Equal(t, "first", store.Load().Get(KeySystems))

	t.Run("invalid file", func(t *testing.T) {
		writeConfig(t, dir, DefaultFileName, "systems first\nport not-a-port\n")

		values, err := store.Reload()
		require.Error(t, err)
		assert.Equal(t, errors.KindConfigReload, errors.KindOf(err))
		assert.Equal(t, "first", values.Get(KeySystems))
		assert.Equal(t, "3000", values.Get(KeyPort))
	})

	t.Run("missing file after a successful load", func(t *testing.T) {
		require.NoError(t, os.Remove(path))

		values, err := store.Reload()
		require.Error(t, err)
		assert.Equal(t, errors.KindConfigReload, errors.KindOf(err))
		assert.Equal(t, "first", values.Get(KeySystems))
	})

	t.Run("valid file again", func(t *testing.T) {
		writeConfig(t, dir, DefaultFileName, "systems second\n")

		values, err := store.Reload()
		require.NoError(t, err)
		assert.Equal(t, "second", values.Get(KeySystems))
		assert.Equal(t, filepath.Join(dir, "second"), store.CurrentRoots().Source.Path)
	})
}

func TestStoreStrictRoots(t *testing.T) {
	store := NewStore(Options{ProjectDir: t.TempDir(), Strict: true})
	roots := store.CurrentRoots()

	assert.True(t, roots.Assets.Required)
	assert.True(t, roots.Source.Required)
	assert.False(t, roots.ConfigFile.Required)
}

func TestStoreSave(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Options{ProjectDir: dir})

	require.NoError(t, store.Save(Defaults()))
	assert.True(t, store.Exists())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), ParseLines(string(data)))

	err = store.Save(Values{KeyDist: ""})
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestWriteFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magic.yaml")
	require.NoError(t, WriteFile(path, Values{KeyDist: "public", KeyPort: "3000"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	values, err := parseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, Values{KeyDist: "public", KeyPort: "3000"}, values)
}

func TestValuesAccessors(t *testing.T) {
	values := Values{
		"timeout_seconds": "30",
		"timeout_go":      "1m30s",
		"bad":             "soon",
		"yes":             "true",
		"num":             "12",
	}

	assert.Equal(t, 30*time.Second, values.Duration("timeout_seconds"))
	assert.Equal(t, 90*time.Second, values.Duration("timeout_go"))
	assert.Zero(t, values.Duration("bad"))
	assert.Zero(t, values.Duration("missing"))
	assert.True(t, values.Bool("yes"))
	assert.False(t, values.Bool("bad"))
	assert.Equal(t, 12, values.Int("num"))
	assert.Zero(t, values.Int("bad"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		values     Values
		wantErrors []string
		wantWarns  []string
	}{
		{name: "defaults", values: Defaults()},
		{name: "empty path", values: Values{KeyAssets: " "}, wantErrors: []string{KeyAssets}},
		{name: "control characters", values: Values{KeySrc: "src\x00"}, wantErrors: []string{KeySrc}},
		{name: "shell characters", values: Values{KeyDist: "out;rm"}, wantErrors: []string{KeyDist}},
		{name: "outside project", values: Values{KeySystems: "../shared"}, wantWarns: []string{KeySystems}},
		{name: "bad port", values: Values{KeyPort: "70000"}, wantErrors: []string{KeyPort}},
		{name: "bad host", values: Values{KeyHost: "local host"}, wantErrors: []string{KeyHost}},
		{name: "bad target", values: Values{KeyTarget: "deno"}, wantErrors: []string{KeyTarget}},
		{name: "bad minify", values: Values{KeyMinify: "sometimes"}, wantErrors: []string{KeyMinify}},
		{name: "bad bundler", values: Values{KeyBundler: "bun | sh"}, wantErrors: []string{KeyBundler}},
		{name: "negative timeout", values: Values{KeyBuildTimeout: "-5s"}, wantErrors: []string{KeyBuildTimeout}},
		{name: "unknown key", values: Values{"colour": "red"}, wantWarns: []string{"colour"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.values)

			var gotErrors, gotWarns []string
			for _, e := range result.Errors {
				gotErrors = append(gotErrors, e.Field)
			}
			for _, w := range result.Warnings {
				gotWarns = append(gotWarns, w.Field)
			}

			assert.Equal(t, tt.wantErrors, gotErrors)
			assert.Equal(t, tt.wantWarns, gotWarns)
		})
	}
}

func TestValidationResultString(t *testing.T) {
	result := Validate(Values{KeyPort: "0", "colour": "red"})

	assert.True(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
	assert.Contains(t, result.String(), "port: port must be a number between 1 and 65535")
	assert.Contains(t, result.String(), "colour: unknown configuration key")
	assert.Equal(t, "port: port must be a number between 1 and 65535", result.Error())
}
