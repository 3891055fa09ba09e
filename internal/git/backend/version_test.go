package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitVersionOutput(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want gitVersion
		ok   bool
	}{
		"empty":          {in: ""},
		"plain":          {in: "git version 2.44.0\n", want: gitVersion{2, 44, 0}, ok: true},
		"apple":          {in: "git version 2.39.3 (Apple Git-146)\n", want: gitVersion{2, 39, 3}, ok: true},
		"windows":        {in: "git version 2.39.3.windows.1\n", want: gitVersion{2, 39, 3}, ok: true},
		"bare_number":    {in: "2.42.1\n", want: gitVersion{2, 42, 1}, ok: true},
		"no_patch":       {in: "git version 2.42\n", want: gitVersion{2, 42, 0}, ok: true},
		"release_cand":   {in: "git version 2.45.0-rc1\n", want: gitVersion{2, 45, 0}, ok: true},
		"not_a_version":  {in: "git version not-a-version\n"},
		"major_only":     {in: "git version 3\n"},
		"trailing_build": {in: "git version 2.50.1.1234\n", want: gitVersion{2, 50, 1}, ok: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, ok := parseGitVersionOutput(tt.in)
			require.Equal(t, tt.ok, ok, "got %+v", got)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestVersionOrdering(t *testing.T) {
	t.Parallel()

	assert.True(t, gitVersion{2, 22, 9}.less(minGitVersion))
	assert.False(t, minGitVersion.less(minGitVersion))
	assert.True(t, gitVersion{1, 99, 99}.less(gitVersion{2, 0, 0}))
	assert.Equal(t, "2.23.0", MinGitVersion())
}

func TestValidateGitVersionOutput(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateGitVersionOutput("git version 2.23.0\n"))
	require.ErrorContains(t, validateGitVersionOutput("git version 2.22.9\n"), "too old")
	require.ErrorContains(t, validateGitVersionOutput("garbage"), "unable to parse")
}

func TestGitVersionMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := GitVersion("definitely-not-a-git-binary-xyz")
	require.Error(t, err)
}
