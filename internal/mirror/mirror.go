// Package mirror copies wiki Markdown into the docs working copy and applies
// the path mapping that relocates selected pages.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/copy"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/observability"
)

// WikiDir is the directory inside the docs working copy that mirrors the wiki.
const WikiDir = "wiki"

// EntryFailure is one file or rule that could not be copied.
type EntryFailure struct {
	Entry string
	Err   error
}

// Report describes one mirror pass.
type Report struct {
	Copied []string // wiki-relative, forward slash
	Mapped []Rule
	Failed []EntryFailure
}

// Mirror copies wiki pages into a docs tree. Copies keep the source's
// modification time, so an unchanged page keeps its rendered HTML fresh.
type Mirror struct {
	copyOpts copy.Options
}

func New() *Mirror {
	return &Mirror{copyOpts: copy.Options{
		OnSymlink:     func(string) copy.SymlinkAction { return copy.Skip },
		PreserveTimes: true,
	}}
}

// Mirror copies every .md file under wikiDir to docsDir/wiki/<rel>, then
// applies rules in order, each overwriting docsDir/<dst> with docsDir/<src>.
// Failed entries are collected and reported as one MirrorFailure; the pass
// continues past them. Only cancellation stops it early.
func (m *Mirror) Mirror(ctx context.Context, wikiDir, docsDir string, rules []Rule) (Report, error) {
	var rep Report
	var errs []error

	pages, err := markdownFiles(wikiDir)
	if err != nil {
		return rep, ferrors.MirrorFailure(err).WithContext("path", wikiDir).Build()
	}

	target := filepath.Join(docsDir, WikiDir)
	for _, rel := range pages {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		src := filepath.Join(wikiDir, filepath.FromSlash(rel))
		dst := filepath.Join(target, filepath.FromSlash(rel))
		if err := copy.Copy(src, dst, m.copyOpts); err != nil {
			rep.Failed = append(rep.Failed, EntryFailure{Entry: rel, Err: err})
			errs = append(errs, fmt.Errorf("copy %s: %w", rel, err))
			continue
		}
		rep.Copied = append(rep.Copied, rel)
	}

	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := m.apply(docsDir, r); err != nil {
			rep.Failed = append(rep.Failed, EntryFailure{Entry: r.String(), Err: err})
			errs = append(errs, fmt.Errorf("mapping %s: %w", r, err))
			continue
		}
		rep.Mapped = append(rep.Mapped, r)
	}

	observability.InfoContext(ctx, "Wiki mirrored",
		logfields.Path(docsDir),
		slog.Int("copied", len(rep.Copied)),
		slog.Int("mapped", len(rep.Mapped)),
		slog.Int("failed", len(rep.Failed)))

	if len(errs) > 0 {
		for _, f := range rep.Failed {
			observability.WarnContext(ctx, "Mirror entry failed", logfields.File(f.Entry), logfields.Error(f.Err))
		}
		return rep, ferrors.MirrorFailure(errors.Join(errs...)).
			WithContext("path", docsDir).
			WithContext("failed", len(rep.Failed)).
			Build()
	}
	return rep, nil
}

func (m *Mirror) apply(docsDir string, r Rule) error {
	src := filepath.Join(docsDir, filepath.FromSlash(r.Source))
	dst := filepath.Join(docsDir, filepath.FromSlash(r.Destination))
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("source %s is a directory", r.Source)
	}
	return copy.Copy(src, dst, m.copyOpts)
}

// Clean deletes the regular files directly inside docsDir/wiki. Nested
// directories are left alone. A missing directory is not an error.
func Clean(docsDir string) (int, error) {
	dir := filepath.Join(docsDir, WikiDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, ferrors.FileSystemError("failed to read wiki directory").
			WithCause(err).WithContext("path", dir).Build()
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, ferrors.FileSystemError("failed to clean wiki directory").
			WithCause(errors.Join(errs...)).WithContext("path", dir).Build()
	}
	slog.Info("Cleaned wiki directory", logfields.Path(dir), logfields.Count(removed))
	return removed, nil
}

// markdownFiles lists .md files below root (case-insensitive extension),
// skipping .git, as sorted forward-slash relative paths.
func markdownFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(out)
	return out, err
}
