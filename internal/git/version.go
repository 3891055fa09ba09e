package git

import "github.com/gitgraph-dev/gitgraph/internal/git/backend"

func GitVersion(binary string) (string, error) {
	return backend.GitVersion(binary)
}

func MinGitVersion() string {
	return backend.MinGitVersion()
}
