package backend

import (
	"cmp"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// minGitVersion is the oldest git the CLI backend accepts. for-each-ref
// with %(upstream:remotename) and `branch --show-current` in the built-in
// actions both need 2.23.
var minGitVersion = gitVersion{major: 2, minor: 23}

type gitVersion struct {
	major, minor, patch int
}

func MinGitVersion() string {
	return minGitVersion.String()
}

func (v gitVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v gitVersion) less(other gitVersion) bool {
	return cmp.Or(
		cmp.Compare(v.major, other.major),
		cmp.Compare(v.minor, other.minor),
		cmp.Compare(v.patch, other.patch),
	) < 0
}

// parseGitVersionOutput accepts "git version 2.44.0" and vendor variants
// such as "2.39.3 (Apple Git-146)" or "2.39.3.windows.1". Only the leading
// dotted number run is read; the patch level is optional.
func parseGitVersionOutput(out string) (gitVersion, bool) {
	s := strings.TrimSpace(out)
	if _, rest, ok := strings.Cut(s, "git version"); ok {
		s = strings.TrimSpace(rest)
	}
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return gitVersion{}, false
	}
	s = s[start:]
	if end := strings.IndexFunc(s, func(r rune) bool { return !isDigit(r) && r != '.' }); end >= 0 {
		s = s[:end]
	}

	var nums [3]int
	parts := strings.Split(strings.Trim(s, "."), ".")
	if len(parts) < 2 {
		return gitVersion{}, false
	}
	for i, p := range parts[:min(len(parts), 3)] {
		n, err := strconv.Atoi(p)
		if err != nil {
			if i < 2 {
				return gitVersion{}, false
			}
			break
		}
		nums[i] = n
	}
	return gitVersion{major: nums[0], minor: nums[1], patch: nums[2]}, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func validateGitVersionOutput(out string) error {
	got, ok := parseGitVersionOutput(out)
	if !ok {
		return fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(out))
	}
	if got.less(minGitVersion) {
		return fmt.Errorf("git %s is too old; gitgraph requires git >= %s", got, minGitVersion)
	}
	return nil
}

type versionProbe struct {
	once sync.Once
	out  string
	err  error
}

// probes caches one `git --version` run per binary.
var probes sync.Map

func probeFor(binary string) *versionProbe {
	p, _ := probes.LoadOrStore(binary, &versionProbe{})
	probe := p.(*versionProbe)
	probe.once.Do(func() {
		outBytes, err := exec.Command(binary, "--version").CombinedOutput()
		probe.out = strings.TrimSpace(string(outBytes))
		if err != nil {
			if probe.out != "" {
				probe.err = fmt.Errorf("%s --version: %v: %s", binary, err, probe.out)
				return
			}
			probe.err = fmt.Errorf("%s --version: %w", binary, err)
			return
		}
		probe.err = validateGitVersionOutput(probe.out)
	})
	return probe
}

// GitVersion returns the raw `git --version` output of binary.
func GitVersion(binary string) (string, error) {
	if binary == "" {
		binary = DefaultGitBinary
	}
	p := probeFor(binary)
	return p.out, p.err
}

func ensureMinGitVersion(binary string) error {
	return probeFor(binary).err
}
