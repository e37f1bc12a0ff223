package resolver

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/eugenenazirov/distconf/internal/format"
)

func TestBuildTiers(t *testing.T) {
	tiers, err := BuildTiers("production", "db1")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "production", "db1", "local", "env"}, tiers)

	tiers, err = BuildTiers("production", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "production", "local", "env"}, tiers)

	tiers, err = BuildTiers("local", "default")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "local", "default", "local", "env"}, tiers)

	_, err = BuildTiers("", "db1")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestBuildTiersProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9_-]{0,11}`).Draw(t, "env")
		host := rapid.OneOf(rapid.Just(""), rapid.StringMatching(`[a-z][a-z0-9.-]{0,15}`)).Draw(t, "host")

		tiers, err := BuildTiers(env, host)
		require.NoError(t, err)

		want := []string{TierDefault, env}
		if host != "" {
			want = append(want, host)
		}
		want = append(want, TierLocal, TierEnv)
		require.Equal(t, want, tiers)
	})
}

func TestSelectFiles(t *testing.T) {
	files := []string{
		"/cfg/default.config.json",
		"/cfg/app.DEFAULT.config.yaml",
		"/cfg/app.production.config.json",
		"/cfg/app.preproduction.config.json",
		"/cfg/default/app.local.config.json",
		"/cfg/app.db1.example.com.config.json",
	}

	assert.Equal(t, []string{
		"/cfg/default.config.json",
		"/cfg/app.DEFAULT.config.yaml",
	}, SelectFiles(files, "default"))

	assert.Equal(t, []string{"/cfg/app.production.config.json"}, SelectFiles(files, "production"))
	assert.Equal(t, []string{"/cfg/default/app.local.config.json"}, SelectFiles(files, "local"))
	assert.Equal(t, []string{"/cfg/app.db1.example.com.config.json"}, SelectFiles(files, "db1.example.com"))
	assert.Empty(t, SelectFiles(files, "env"))
	assert.Empty(t, SelectFiles(files, ""))
}

func TestSelectFilesMultipleTierNames(t *testing.T) {
	files := []string{"/cfg/default.local.config.json"}

	assert.Equal(t, files, SelectFiles(files, "default"))
	assert.Equal(t, files, SelectFiles(files, "local"))
}

func TestSubstituteEnv(t *testing.T) {
	tree := map[string]any{
		"secret": "MY_SECRET",
		"db": map[string]any{
			"password": "DB_PASS",
			"user":     "DB_USER",
		},
		"count": 42,
		"list":  []any{"A", "B"},
		"empty": map[string]any{},
	}
	lookup := envMap(map[string]string{
		"MY_SECRET": "abc",
		"DB_PASS":   "pw",
		"DB_USER":   "",
		"42":        "forty-two",
	})

	got := SubstituteEnv(tree, lookup)

	assert.Equal(t, map[string]any{
		"secret": "abc",
		"db":     map[string]any{"password": "pw"},
		"count":  "forty-two",
	}, got)
	assert.Equal(t, "MY_SECRET", tree["secret"], "input must not be modified")
}

func TestSubstituteEnvLists(t *testing.T) {
	tree := map[string]any{
		"hosts": []any{"HOST_A", "HOST_UNSET", "HOST_C"},
		"users": []any{
			map[string]any{"name": "USER_1", "token": "TOKEN_UNSET"},
			map[string]any{"token": "TOKEN_UNSET"},
		},
		"nested": []any{[]any{"HOST_A"}},
		"gone":   []any{"HOST_UNSET"},
	}
	vars := map[string]string{
		"HOST_A": "a.internal",
		"HOST_C": "c.internal",
		"USER_1": "alice",
	}
	for i := range 11 {
		vars["N"+strconv.Itoa(i)] = strconv.Itoa(i)
	}
	long := make([]any, 0, 11)
	for i := range 11 {
		long = append(long, "N"+strconv.Itoa(i))
	}
	tree["long"] = long

	got := SubstituteEnv(tree, envMap(vars))

	assert.Equal(t, []any{"a.internal", "c.internal"}, got["hosts"])
	assert.Equal(t, []any{map[string]any{"name": "alice"}}, got["users"])
	assert.Equal(t, []any{[]any{"a.internal"}}, got["nested"])
	assert.NotContains(t, got, "gone")
	assert.Equal(t, []any{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, got["long"])
	assert.Equal(t, []any{"HOST_A", "HOST_UNSET", "HOST_C"}, tree["hosts"], "input must not be modified")
}

func TestSubstituteEnvAllDropped(t *testing.T) {
	got := SubstituteEnv(map[string]any{"a": map[string]any{"b": "UNSET"}}, envMap(nil))
	assert.Empty(t, got)
}

func TestDetectHostname(t *testing.T) {
	t.Cleanup(func() {
		osHostname = defaultOSHostname
	})

	assert.Equal(t, "from-host", DetectHostname(envMap(map[string]string{"HOST": "from-host", "HOSTNAME": "other"})))
	assert.Equal(t, "from-hostname", DetectHostname(envMap(map[string]string{"HOST": " ", "HOSTNAME": "from-hostname"})))

	osHostname = func() (string, error) { return "os-host", nil }
	assert.Equal(t, "os-host", DetectHostname(envMap(nil)))

	osHostname = func() (string, error) { return "", fmt.Errorf("no hostname") }
	assert.Equal(t, FallbackHostname, DetectHostname(envMap(nil)))
}

var defaultOSHostname = osHostname

// Whatever values each tier assigns, the final value of a key is the one from
// the last tier that defines it.
func TestCascadePrecedenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tiers := []string{TierDefault, "production", "web1", TierLocal}

		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/cfg", 0o755))
		var files []string
		want := ""
		for _, tier := range tiers {
			if !rapid.Bool().Draw(t, "has_"+tier) {
				continue
			}
			value := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "value_"+tier)
			path := fmt.Sprintf("/cfg/app.%s.config.json", tier)
			require.NoError(t, afero.WriteFile(fs, path, []byte(fmt.Sprintf(`{"key": %q, "nested": {%q: true}}`, value, tier)), 0o644))
			files = append(files, path)
			want = value
		}

		c := &cascade{loader: format.NewLoader(fs, nil), lookup: envMap(nil), logger: zap.NewNop()}
		tree, sources, err := c.run(files, append(tiers, TierEnv))
		require.NoError(t, err)
		require.Len(t, sources, len(files))

		if want == "" {
			require.NotContains(t, tree, "key")
			return
		}
		require.Equal(t, want, tree["key"])

		nested, ok := tree["nested"].(map[string]any)
		require.True(t, ok)
		require.Len(t, nested, len(files), "nested keys from every tier survive the merge")
	})
}
