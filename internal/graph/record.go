package graph

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
)

// MalformedRecordError reports a history record that cannot be parsed.
type MalformedRecordError struct {
	Index  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed history record %d: %s", e.Index, e.Reason)
}

// SplitRecords splits a bulk history stream into records.
func SplitRecords(data []byte) []string {
	raw := strings.Split(string(data), string(backend.RecordSep))
	records := make([]string, 0, len(raw))
	for _, rec := range raw {
		rec = strings.TrimLeft(rec, "\r\n")
		if strings.TrimSpace(rec) == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func parseRecord(rec string) (*Commit, error) {
	fields := strings.Split(rec, string(backend.FieldSep))
	if len(fields) != backend.RecordFields {
		return nil, fmt.Errorf("expected %d fields, got %d", backend.RecordFields, len(fields))
	}
	hash := strings.TrimSpace(fields[0])
	if !isHex(hash) {
		return nil, fmt.Errorf("invalid commit hash %q", fields[0])
	}
	authorTime, err := parseUnix(fields[5])
	if err != nil {
		return nil, fmt.Errorf("author time: %w", err)
	}
	commitTime, err := parseUnix(fields[6])
	if err != nil {
		return nil, fmt.Errorf("commit time: %w", err)
	}
	var stash bool
	switch strings.TrimSpace(fields[10]) {
	case "":
	case backend.StashMarker:
		stash = true
	default:
		return nil, fmt.Errorf("invalid stash marker %q", fields[10])
	}
	short := strings.TrimSpace(fields[1])
	if short == "" {
		short = hash[:min(7, len(hash))]
	}
	return &Commit{
		Hash:        hash,
		ShortHash:   short,
		Parents:     strings.Fields(fields[2]),
		AuthorName:  fields[3],
		AuthorEmail: fields[4],
		AuthorTime:  authorTime,
		CommitTime:  commitTime,
		Refs:        ParseDecorations(fields[7]),
		Subject:     fields[8],
		Body:        strings.TrimRight(fields[9], "\r\n"),
		Stash:       stash,
	}, nil
}

func parseUnix(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

func isHex(s string) bool {
	if len(s) < 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// ParseDecorations parses the ref list printed by `git log --decorate=full`
// (%D), e.g. "HEAD -> refs/heads/main, tag: refs/tags/v1, refs/stash".
func ParseDecorations(s string) []Ref {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var refs []Ref
	for _, token := range strings.Split(s, ", ") {
		token = strings.TrimSpace(token)
		switch {
		case token == "":
		case token == "HEAD":
			refs = append(refs, Ref{Kind: RefHead, FullName: "HEAD"})
		case strings.HasPrefix(token, "HEAD -> "):
			target := strings.TrimPrefix(token, "HEAD -> ")
			head := ParseRefName(target)
			refs = append(refs, Ref{Kind: RefHead, Name: head.Name, FullName: "HEAD"}, head)
		case strings.HasPrefix(token, "tag: "):
			refs = append(refs, ParseRefName(strings.TrimPrefix(token, "tag: ")))
		default:
			refs = append(refs, ParseRefName(token))
		}
	}
	return refs
}

// ParseRefName classifies a full ref name.
func ParseRefName(full string) Ref {
	switch {
	case strings.HasPrefix(full, "refs/heads/"):
		return Ref{Kind: RefLocalBranch, Name: strings.TrimPrefix(full, "refs/heads/"), FullName: full}
	case strings.HasPrefix(full, "refs/remotes/"):
		return Ref{Kind: RefRemoteBranch, Name: strings.TrimPrefix(full, "refs/remotes/"), FullName: full}
	case strings.HasPrefix(full, "refs/tags/"):
		return Ref{Kind: RefTag, Name: strings.TrimPrefix(full, "refs/tags/"), FullName: full}
	case full == "refs/stash":
		return Ref{Kind: RefStash, Name: "stash", FullName: full}
	default:
		return Ref{Kind: RefOther, Name: full, FullName: full}
	}
}
