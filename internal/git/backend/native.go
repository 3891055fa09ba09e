package backend

import (
	"bytes"
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const stashRef = plumbing.ReferenceName("refs/stash")

// nativeBackend reads repositories through go-git. It never writes; Exec is
// delegated to the git executable.
type nativeBackend struct {
	repo     *git.Repository
	root     string
	worktree billy.Filesystem
	cli      *gitCLI
}

// OpenNative opens the repository containing repoPath with go-git.
func OpenNative(repoPath string, gitBinary string) (Backend, error) {
	if gitBinary == "" {
		gitBinary = DefaultGitBinary
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("open repository %s: %w", abs, ErrNotAGitRepository)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	b := &nativeBackend{repo: repo, root: abs}
	if wt, err := repo.Worktree(); err == nil {
		b.worktree = wt.Filesystem
		b.root = wt.Filesystem.Root()
	}
	b.cli = &gitCLI{path: b.root, binary: gitBinary}
	return b, nil
}

func (n *nativeBackend) RepoPath() string { return n.root }

func (n *nativeBackend) HistoryRecords(ctx context.Context, q HistoryQuery) ([]byte, error) {
	start := time.Now()
	var stashes []plumbing.Hash
	if q.IncludeStashes {
		var err error
		if stashes, err = n.stashHashes(); err != nil {
			return nil, err
		}
	}
	starts, err := n.startPoints(q, stashes)
	if err != nil {
		return nil, err
	}
	ordered, err := n.dateOrder(ctx, starts)
	if err != nil {
		return nil, err
	}
	if q.Skip > 0 {
		ordered = ordered[min(q.Skip, len(ordered)):]
	}
	if q.Limit > 0 && len(ordered) > q.Limit {
		ordered = ordered[:q.Limit]
	}
	decorations, err := n.decorations(q)
	if err != nil {
		return nil, err
	}
	stashSet := make(map[string]struct{}, len(stashes))
	for _, h := range stashes {
		stashSet[h.String()] = struct{}{}
	}

	var out bytes.Buffer
	for _, c := range ordered {
		hash := c.Hash.String()
		parents := make([]string, 0, len(c.ParentHashes))
		for _, p := range c.ParentHashes {
			parents = append(parents, p.String())
		}
		subject, body := splitMessage(c.Message)
		out.WriteString(EncodeRecord(
			hash,
			hash[:7],
			strings.Join(parents, " "),
			c.Author.Name,
			c.Author.Email,
			strconv.FormatInt(c.Author.When.Unix(), 10),
			strconv.FormatInt(c.Committer.When.Unix(), 10),
			strings.Join(decorations[c.Hash], ", "),
			subject,
			body,
			stashField(stashSet, hash),
		))
	}
	slog.Debug("history records loaded",
		slog.String("backend", "native"),
		slog.Int("commits", len(ordered)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return out.Bytes(), nil
}

// splitMessage mirrors git's %s/%b split: the first paragraph, unwrapped,
// is the subject and everything after the blank line is the body.
func splitMessage(msg string) (subject, body string) {
	msg = strings.TrimLeft(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
	first, rest, _ := strings.Cut(msg, "\n\n")
	subject = strings.Join(strings.Fields(strings.ReplaceAll(first, "\n", " ")), " ")
	return subject, strings.TrimLeft(rest, "\n")
}

func (n *nativeBackend) startPoints(q HistoryQuery, stashes []plumbing.Hash) ([]plumbing.Hash, error) {
	var starts []plumbing.Hash
	if q.AllRefs {
		refs, err := n.repo.References()
		if err != nil {
			return nil, fmt.Errorf("list references: %w", err)
		}
		err = refs.ForEach(func(ref *plumbing.Reference) error {
			if ref.Type() != plumbing.HashReference {
				return nil
			}
			name := ref.Name()
			switch {
			case name.IsBranch(), name.IsRemote():
				starts = append(starts, ref.Hash())
			case name.IsTag():
				if h, ok := n.peel(ref.Hash()); ok {
					starts = append(starts, h)
				}
			case name == stashRef && q.IncludeStashes:
				starts = append(starts, ref.Hash())
			}
			return nil
		})
		refs.Close()
		if err != nil {
			return nil, err
		}
	}
	if q.AllRefs || len(q.Revisions) == 0 {
		if head, err := n.repo.Head(); err == nil {
			starts = append(starts, head.Hash())
		} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("resolve HEAD: %w", err)
		}
	}
	for _, rev := range q.Revisions {
		h, err := n.repo.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", rev, err)
		}
		starts = append(starts, *h)
	}
	return append(starts, stashes...), nil
}

// peel resolves annotated tags to the commit they point at.
func (n *nativeBackend) peel(h plumbing.Hash) (plumbing.Hash, bool) {
	if tag, err := n.repo.TagObject(h); err == nil {
		c, err := tag.Commit()
		if err != nil {
			return plumbing.ZeroHash, false
		}
		return c.Hash, true
	}
	if _, err := n.repo.CommitObject(h); err != nil {
		return plumbing.ZeroHash, false
	}
	return h, true
}

// stashHashes lists stash entries newest first, like `git stash list`.
func (n *nativeBackend) stashHashes() ([]plumbing.Hash, error) {
	if st, ok := n.repo.Storer.(*filesystem.Storage); ok {
		data, err := util.ReadFile(st.Filesystem(), "logs/refs/stash")
		if err == nil {
			return parseStashReflog(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read stash reflog: %w", err)
		}
	}
	ref, err := n.repo.Reference(stashRef, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve refs/stash: %w", err)
	}
	return []plumbing.Hash{ref.Hash()}, nil
}

func parseStashReflog(data []byte) []plumbing.Hash {
	var hashes []plumbing.Hash
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !plumbing.IsHash(fields[1]) {
			continue
		}
		hashes = append(hashes, plumbing.NewHash(fields[1]))
	}
	slices.Reverse(hashes)
	return hashes
}

// dateOrder walks everything reachable from starts and returns it children
// first, newest committer date first among ready commits (git --date-order).
func (n *nativeBackend) dateOrder(ctx context.Context, starts []plumbing.Hash) ([]*object.Commit, error) {
	commits := map[plumbing.Hash]*object.Commit{}
	queue := slices.Clone(starts)
	for len(queue) > 0 {
		h := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, ok := commits[h]; ok {
			continue
		}
		if len(commits)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c, err := n.repo.CommitObject(h)
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				// shallow boundary
				continue
			}
			return nil, fmt.Errorf("read commit %s: %w", h, err)
		}
		commits[h] = c
		queue = append(queue, c.ParentHashes...)
	}

	pending := make(map[plumbing.Hash]int, len(commits))
	for _, c := range commits {
		for _, p := range uniqueParents(c.ParentHashes) {
			if _, ok := commits[p]; ok {
				pending[p]++
			}
		}
	}
	ready := &commitHeap{}
	for h, c := range commits {
		if pending[h] == 0 {
			heap.Push(ready, c)
		}
	}
	ordered := make([]*object.Commit, 0, len(commits))
	for ready.Len() > 0 {
		c := heap.Pop(ready).(*object.Commit)
		ordered = append(ordered, c)
		for _, p := range uniqueParents(c.ParentHashes) {
			pc, ok := commits[p]
			if !ok {
				continue
			}
			pending[p]--
			if pending[p] == 0 {
				heap.Push(ready, pc)
			}
		}
	}
	return ordered, nil
}

func uniqueParents(parents []plumbing.Hash) []plumbing.Hash {
	if len(parents) < 2 {
		return parents
	}
	out := make([]plumbing.Hash, 0, len(parents))
	for _, p := range parents {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

type commitHeap []*object.Commit

func (h commitHeap) Len() int { return len(h) }
func (h commitHeap) Less(i, j int) bool {
	ti, tj := h[i].Committer.When, h[j].Committer.When
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return h[i].Hash.String() < h[j].Hash.String()
}
func (h commitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *commitHeap) Push(x any)   { *h = append(*h, x.(*object.Commit)) }
func (h *commitHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// decorations renders ref names per commit the way `git log --decorate=full`
// prints %D.
func (n *nativeBackend) decorations(q HistoryQuery) (map[plumbing.Hash][]string, error) {
	out := map[plumbing.Hash][]string{}
	var headBranch plumbing.ReferenceName
	if head, err := n.repo.Reference(plumbing.HEAD, false); err == nil {
		if head.Type() == plumbing.SymbolicReference {
			headBranch = head.Target()
			if resolved, err := n.repo.Reference(head.Target(), true); err == nil {
				out[resolved.Hash()] = append(out[resolved.Hash()], "HEAD -> "+head.Target().String())
			}
		} else {
			out[head.Hash()] = append(out[head.Hash()], "HEAD")
		}
	}

	type labelled struct {
		hash  plumbing.Hash
		label string
	}
	var labels []labelled
	refs, err := n.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		switch {
		case name == headBranch:
		case name.IsBranch(), name.IsRemote():
			labels = append(labels, labelled{ref.Hash(), name.String()})
		case name.IsTag():
			if h, ok := n.peel(ref.Hash()); ok {
				labels = append(labels, labelled{h, "tag: " + name.String()})
			}
		case name == stashRef && q.IncludeStashes:
			labels = append(labels, labelled{ref.Hash(), name.String()})
		}
		return nil
	})
	refs.Close()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(labels, func(a, b labelled) int { return strings.Compare(a.label, b.label) })
	for _, l := range labels {
		out[l.hash] = append(out[l.hash], l.label)
	}
	return out, nil
}

func (n *nativeBackend) HeadState(_ context.Context) (hash string, headName string, ok bool, err error) {
	head, err := n.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("resolve HEAD: %w", err)
	}
	headName = "HEAD"
	if head.Name().IsBranch() {
		headName = head.Name().Short()
	}
	return head.Hash().String(), headName, true, nil
}

func (n *nativeBackend) BranchRecords(_ context.Context) ([]BranchRecord, error) {
	cfg, err := n.repo.Config()
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	refs, err := n.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer refs.Close()

	var records []BranchRecord
	when := map[string]time.Time{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		rec := BranchRecord{FullRef: name.String(), Name: name.Short(), Hash: ref.Hash().String()}
		switch {
		case name.IsBranch():
			rec.Kind = RefKindBranch
			if b, ok := cfg.Branches[rec.Name]; ok && b.Merge != "" {
				rec.RemoteName = b.Remote
				rec.Upstream = b.Merge.Short()
				if b.Remote != "" && b.Remote != "." {
					rec.Upstream = b.Remote + "/" + b.Merge.Short()
				}
			}
		case name.IsRemote():
			rec.Kind = RefKindRemoteBranch
			rec.RemoteName, _, _ = strings.Cut(rec.Name, "/")
			if ref.Type() == plumbing.SymbolicReference {
				resolved, err := n.repo.Reference(name, true)
				if err != nil {
					return nil
				}
				rec.Hash = resolved.Hash().String()
			}
		case name.IsTag():
			rec.Kind = RefKindTag
			h, ok := n.peel(ref.Hash())
			if !ok {
				return nil
			}
			rec.Hash = h.String()
		default:
			return nil
		}
		if c, err := n.repo.CommitObject(plumbing.NewHash(rec.Hash)); err == nil {
			when[rec.FullRef] = c.Committer.When
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(records, func(a, b BranchRecord) int {
		return when[b.FullRef].Compare(when[a.FullRef])
	})
	return records, nil
}

func (n *nativeBackend) commit(rev string) (*object.Commit, error) {
	h, err := n.repo.ResolveRevision(plumbing.Revision(strings.TrimSpace(rev)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	c, err := n.repo.CommitObject(*h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", rev, err)
	}
	return c, nil
}

func (n *nativeBackend) FileSnapshot(_ context.Context, commit, path string) ([]byte, error) {
	c, err := n.commit(commit)
	if err != nil {
		return nil, err
	}
	rel := filepath.ToSlash(n.cli.relPath(path))
	f, err := c.File(rel)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("%s at %s: %w", rel, commit, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", rel, commit, err)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", rel, commit, err)
	}
	return []byte(content), nil
}

func (n *nativeBackend) LineCount(_ context.Context, path string) (int, error) {
	if n.worktree == nil {
		return 0, fmt.Errorf("bare repository has no checkout: %w", fs.ErrNotExist)
	}
	f, err := n.worktree.Open(n.cli.relPath(path))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()
	return countLines(f)
}

func (n *nativeBackend) BlameLine(_ context.Context, path string, line int) (BlameRecord, error) {
	c, err := n.commit("HEAD")
	if err != nil {
		return BlameRecord{}, err
	}
	rel := filepath.ToSlash(n.cli.relPath(path))
	res, err := git.Blame(c, rel)
	if err != nil {
		return BlameRecord{}, fmt.Errorf("blame %s: %w", rel, err)
	}
	if line < 1 || line > len(res.Lines) {
		return BlameRecord{}, fmt.Errorf("blame %s: line %d outside 1..%d", rel, line, len(res.Lines))
	}
	l := res.Lines[line-1]
	rec := BlameRecord{
		Hash:        l.Hash.String(),
		AuthorName:  l.AuthorName,
		AuthorEmail: l.Author,
		AuthorTime:  l.Date.UTC(),
	}
	if bc, err := n.repo.CommitObject(l.Hash); err == nil {
		rec.Summary, _ = splitMessage(bc.Message)
	}
	return rec, nil
}

func (n *nativeBackend) CommitFiles(_ context.Context, commit string) ([]FileChange, error) {
	c, err := n.commit(commit)
	if err != nil {
		return nil, err
	}
	stats, err := c.Stats()
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", commit, err)
	}
	files := make([]FileChange, 0, len(stats))
	for _, s := range stats {
		files = append(files, FileChange{Path: normalizeNumstatPath(s.Name), Added: s.Addition, Removed: s.Deletion})
	}
	return files, nil
}

func (n *nativeBackend) ConfigValue(_ context.Context, key string) (string, error) {
	section, subsection, option, err := splitConfigKey(key)
	if err != nil {
		return "", err
	}
	cfg, err := n.repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	if !cfg.Raw.HasSection(section) {
		return "", fmt.Errorf("config %s: not set", key)
	}
	sec := cfg.Raw.Section(section)
	if subsection != "" {
		if !sec.HasSubsection(subsection) {
			return "", fmt.Errorf("config %s: not set", key)
		}
		sub := sec.Subsection(subsection)
		if !sub.HasOption(option) {
			return "", fmt.Errorf("config %s: not set", key)
		}
		return strings.TrimSpace(sub.Option(option)), nil
	}
	if !sec.HasOption(option) {
		return "", fmt.Errorf("config %s: not set", key)
	}
	return strings.TrimSpace(sec.Option(option)), nil
}

// splitConfigKey splits "section[.subsection].key"; the subsection may
// itself contain dots.
func splitConfigKey(key string) (section, subsection, option string, err error) {
	key = strings.TrimSpace(key)
	first := strings.Index(key, ".")
	last := strings.LastIndex(key, ".")
	if first <= 0 || last == len(key)-1 {
		return "", "", "", fmt.Errorf("invalid config key %q", key)
	}
	section = key[:first]
	option = key[last+1:]
	if last > first {
		subsection = key[first+1 : last]
	}
	return section, subsection, option, nil
}

func (n *nativeBackend) Exec(ctx context.Context, args []string) (string, error) {
	return n.cli.Exec(ctx, args)
}
