// Package actions loads the action catalog and expands action templates
// into command plans for the executor.
package actions

import (
	"strings"
)

type Scope string

const (
	ScopeGlobal     Scope = "global"
	ScopeCommit     Scope = "commit"
	ScopeCommits    Scope = "commits"
	ScopeStash      Scope = "stash"
	ScopeTag        Scope = "tag"
	ScopeBranch     Scope = "branch"
	ScopeBranchDrop Scope = "branch-drop"
)

func Scopes() []Scope {
	return []Scope{ScopeGlobal, ScopeCommit, ScopeCommits, ScopeStash, ScopeTag, ScopeBranch, ScopeBranchDrop}
}

// Param is a value the user supplies when running an action. Numeric ids
// back positional placeholders ($1, $2, ...).
type Param struct {
	ID          string `yaml:"id" json:"id" toml:"id" validate:"required"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty" toml:"default"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty" toml:"placeholder"`
}

// Option is a flag appended to the command when enabled.
type Option struct {
	ID            string `yaml:"id" json:"id" toml:"id" validate:"required"`
	Title         string `yaml:"title,omitempty" json:"title,omitempty" toml:"title"`
	Flag          string `yaml:"flag" json:"flag" toml:"flag" validate:"required"`
	DefaultActive bool   `yaml:"default_active,omitempty" json:"default_active,omitempty" toml:"default_active"`
}

type Def struct {
	ID          string   `yaml:"id" json:"id" toml:"id" validate:"required"`
	Title       string   `yaml:"title,omitempty" json:"title,omitempty" toml:"title"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty" toml:"description"`
	Scope       Scope    `yaml:"scope" json:"scope" toml:"scope" validate:"required,oneof=global commit commits stash tag branch branch-drop"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty" toml:"aliases" validate:"dive,required"`
	Template    string   `yaml:"template,omitempty" json:"template,omitempty" toml:"template" validate:"required_without=Templates"`
	// Templates run one after the other, each only if the previous one
	// succeeded.
	Templates []string `yaml:"templates,omitempty" json:"templates,omitempty" toml:"templates" validate:"required_without=Template,dive,required"`
	// Shell runs each command through sh, for templates that need pipes or
	// redirections. Substituted values are quoted for sh.
	Shell            bool     `yaml:"shell,omitempty" json:"shell,omitempty" toml:"shell"`
	Params           []Param  `yaml:"params,omitempty" json:"params,omitempty" toml:"params" validate:"dive"`
	Options          []Option `yaml:"options,omitempty" json:"options,omitempty" toml:"options" validate:"dive"`
	IgnoreErrors     bool     `yaml:"ignore_errors,omitempty" json:"ignore_errors,omitempty" toml:"ignore_errors"`
	AllowNonZeroExit bool     `yaml:"allow_non_zero_exit,omitempty" json:"allow_non_zero_exit,omitempty" toml:"allow_non_zero_exit"`
}

// Source returns the full command line of the action.
func (d Def) Source() string {
	parts := make([]string, 0, len(d.Templates)+1)
	if t := strings.TrimSpace(d.Template); t != "" {
		parts = append(parts, t)
	}
	for _, t := range d.Templates {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " && ")
}

func (d Def) param(id string) (Param, bool) {
	for _, p := range d.Params {
		if p.ID == id {
			return p, true
		}
	}
	return Param{}, false
}

func (d *Def) normalize() {
	d.ID = strings.TrimSpace(d.ID)
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = titleFromDescription(d.Description)
	}
	if d.Title == "" {
		d.Title = d.Source()
	}
}

func titleFromDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	if before, _, ok := strings.Cut(desc, "("); ok {
		return strings.TrimSpace(before)
	}
	return desc
}

// sanitizeID lowercases text and collapses every run of non-alphanumeric
// characters into a single dash.
func sanitizeID(text string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(sb.String(), "-")
}
