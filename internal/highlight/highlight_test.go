package highlight

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTheme(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ThemeDark, ParseTheme(" Dark "))
	assert.Equal(t, ThemeLight, ParseTheme("light"))
	assert.Equal(t, ThemeAuto, ParseTheme("solarized"))
	assert.Equal(t, "auto", ThemeAuto.String())
}

func TestThemeAutoUsesDetection(t *testing.T) {
	orig := detectDarkMode
	t.Cleanup(func() { detectDarkMode = orig })

	detectDarkMode = func() (bool, error) { return true, nil }
	assert.True(t, ThemeAuto.IsDark())
	detectDarkMode = func() (bool, error) { return false, errors.New("no desktop") }
	assert.False(t, ThemeAuto.IsDark())
	assert.True(t, ThemeDark.IsDark())
}

func TestCode(t *testing.T) {
	t.Parallel()

	h := New(ThemeLight)
	out := h.Code("main.go", "package main\n")
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, stripANSI(out), "package main")

	assert.Equal(t, "plain", h.Code("notes.unknownext", "plain"))

	var nilH *Highlighter
	assert.Equal(t, "x := 1", nilH.Code("a.go", "x := 1"))
}

func TestDiffKeepsStructure(t *testing.T) {
	t.Parallel()

	diff := strings.Join([]string{
		"diff --git a/main.go b/main.go",
		"--- a/main.go",
		"+++ b/main.go",
		"@@ -1,2 +1,2 @@",
		" package main",
		"-var x = 1",
		"+var x = 2",
		"",
	}, "\n")
	out := New(ThemeDark).Diff(diff)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 8)
	assert.Equal(t, "@@ -1,2 +1,2 @@", lines[3])
	assert.True(t, strings.HasPrefix(lines[5], "-"))
	assert.Equal(t, "+var x = 2", stripANSI(lines[6]))
}

func TestDiffTargetPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dir/a.py", diffTargetPath("+++ b/dir/a.py"))
	assert.Equal(t, "a.py", diffTargetPath("+++ b/a.py\t2024-01-01"))
	assert.Empty(t, diffTargetPath("+++ /dev/null"))
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
