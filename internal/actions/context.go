package actions

import (
	"slices"
	"strings"
)

// Context carries the values an action template can refer to. Front ends
// fill the fields relevant to the current selection.
type Context struct {
	BranchDisplayName string            `json:"branch_display_name,omitempty"`
	BranchName        string            `json:"branch_name,omitempty"`
	LocalBranchName   string            `json:"local_branch_name,omitempty"`
	BranchID          string            `json:"branch_id,omitempty"`
	SourceBranchName  string            `json:"source_branch_name,omitempty"`
	TargetBranchName  string            `json:"target_branch_name,omitempty"`
	CommitHash        string            `json:"commit_hash,omitempty"`
	CommitHashes      []string          `json:"commit_hashes,omitempty"`
	CommitBody        string            `json:"commit_body,omitempty"`
	StashName         string            `json:"stash_name,omitempty"`
	TagName           string            `json:"tag_name,omitempty"`
	RemoteName        string            `json:"remote_name,omitempty"`
	DefaultRemoteName string            `json:"default_remote_name,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`

	// Params are user supplied parameter values by parameter id.
	Params map[string]string `json:"params,omitempty"`
	// Args back positional placeholders: $1 is Args[0].
	Args           []string `json:"args,omitempty"`
	EnabledOptions []string `json:"enabled_options,omitempty"`
	// Confirmed is required by destructive branch-drop actions.
	Confirmed bool `json:"confirmed,omitempty"`
}

// Values returns the placeholder values of the context. Params override
// everything else.
func (c Context) Values() map[string]string {
	out := make(map[string]string, 16+len(c.Extra)+len(c.Params))
	set := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	set("BRANCH_DISPLAY_NAME", c.BranchDisplayName)
	set("BRANCH_NAME", c.BranchName)
	set("LOCAL_BRANCH_NAME", c.LocalBranchName)
	set("BRANCH_ID", c.BranchID)
	set("SOURCE_BRANCH_NAME", c.SourceBranchName)
	set("TARGET_BRANCH_NAME", c.TargetBranchName)
	set("COMMIT_HASH", c.CommitHash)
	set("COMMIT_HASHES", strings.Join(c.CommitHashes, " "))
	set("COMMIT_BODY", c.CommitBody)
	set("STASH_NAME", c.StashName)
	set("TAG_NAME", c.TagName)
	set("REMOTE_NAME", c.RemoteName)
	set("DEFAULT_REMOTE_NAME", c.DefaultRemoteName)
	if c.DefaultRemoteName == "" {
		set("DEFAULT_REMOTE_NAME", c.RemoteName)
	}
	for k, v := range c.Extra {
		out[k] = v
	}
	for k, v := range c.Params {
		out[k] = v
	}
	return out
}

// WithDefaultRemote fills the remote names when the caller left them empty.
func (c Context) WithDefaultRemote(remote string) Context {
	if remote == "" {
		return c
	}
	if c.RemoteName == "" {
		c.RemoteName = remote
	}
	if c.DefaultRemoteName == "" {
		c.DefaultRemoteName = remote
	}
	return c
}

func (c Context) optionEnabled(o Option) bool {
	return o.DefaultActive || slices.Contains(c.EnabledOptions, o.ID) || slices.Contains(c.EnabledOptions, o.Flag)
}

const confirmedKey = "CONFIRMED"

// RequiredKeys lists the context keys a scope needs.
func RequiredKeys(s Scope) []string {
	switch s {
	case ScopeCommit:
		return []string{"COMMIT_HASH"}
	case ScopeCommits:
		return []string{"COMMIT_HASHES"}
	case ScopeStash:
		return []string{"STASH_NAME"}
	case ScopeTag:
		return []string{"TAG_NAME"}
	case ScopeBranch:
		return []string{"BRANCH_NAME"}
	case ScopeBranchDrop:
		return []string{"BRANCH_NAME", confirmedKey}
	default:
		return nil
	}
}

// CheckScope verifies that c supplies every key required by s.
func CheckScope(s Scope, c Context) error {
	values := c.Values()
	var missing []string
	for _, key := range RequiredKeys(s) {
		switch key {
		case confirmedKey:
			if !c.Confirmed {
				missing = append(missing, key)
			}
		case "COMMIT_HASHES":
			if len(c.CommitHashes) == 0 && strings.TrimSpace(values[key]) == "" {
				missing = append(missing, key)
			}
		default:
			if strings.TrimSpace(values[key]) == "" {
				missing = append(missing, key)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &ScopeViolationError{Scope: s, Missing: missing}
}
