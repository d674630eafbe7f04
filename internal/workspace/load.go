package workspace

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jward/refit/internal/syntax"
)

// skipDirs are build output directories excluded from every listing.
var skipDirs = map[string]bool{
	"bin":          true,
	"obj":          true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"target":       true,
}

// Session is an open workspace. Its snapshot is taken once at load time.
type Session struct {
	root string
	snap *Snapshot
}

// Root returns the directory the session was loaded from.
func (s *Session) Root() string { return s.root }

// Snapshot returns the session's immutable snapshot.
func (s *Session) Snapshot() *Snapshot { return s.snap }

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	logger logrus.FieldLogger
	useGit bool
}

// WithLogger sets the logger used while loading.
func WithLogger(l logrus.FieldLogger) LoadOption {
	return func(c *loadConfig) { c.logger = l }
}

// WithoutGit always lists files by walking the directory tree.
func WithoutGit() LoadOption {
	return func(c *loadConfig) { c.useGit = false }
}

// Load discovers the projects under root and their documents.
//
// Files are listed with git ls-files when root is inside a git repository,
// which respects .gitignore. Otherwise the directory tree is walked,
// skipping hidden directories and common build output directories.
func Load(ctx context.Context, root string, opts ...LoadOption) (*Session, error) {
	cfg := &loadConfig{logger: logrus.StandardLogger(), useGit: true}
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		files []string
		err   error
	)
	if cfg.useGit {
		files, err = gitListFiles(ctx, root)
		if err == nil {
			files = pruneListed(root, files)
		}
	}
	if !cfg.useGit || err != nil {
		if err != nil {
			cfg.logger.WithError(err).Debug("git listing unavailable, walking directory")
		}
		files, err = walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	units := buildUnits(root, files)
	cfg.logger.WithFields(logrus.Fields{
		"root":  root,
		"files": len(files),
		"units": len(units),
	}).Debug("workspace loaded")

	return &Session{root: root, snap: NewSnapshot(units...)}, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root. Paths are slash-separated and relative to root.
func gitListFiles(ctx context.Context, root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("workspace: git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	return paths, nil
}

// pruneListed applies the walk's directory rules to git-listed paths and
// drops tracked files that were deleted from the working tree, so both
// listing modes yield the same documents.
func pruneListed(root string, paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if skippedPath(p) {
			continue
		}
		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// skippedPath reports whether a slash-separated relative path lies under a
// hidden or skipped directory.
func skippedPath(p string) bool {
	dirs := strings.Split(p, "/")
	for _, name := range dirs[:len(dirs)-1] {
		if strings.HasPrefix(name, ".") || skipDirs[name] {
			return true
		}
	}
	return false
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: walk directory: %w", err)
	}
	return paths, nil
}

// buildUnits groups files into units. A file belongs to the projects of its
// nearest enclosing project directory whose language matches the file's.
func buildUnits(root string, files []string) []*Unit {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}

	byDir := make(map[string][]*Unit)
	var units []*Unit
	for _, f := range files {
		if u, ok := detectManifest(root, f, present); ok {
			byDir[u.Dir] = append(byDir[u.Dir], u)
			units = append(units, u)
		}
	}

	for _, f := range files {
		lang, ok := syntax.LanguageForFile(f)
		if !ok {
			continue
		}
		for _, u := range owningUnits(byDir, f) {
			if u.Language == lang {
				u.Documents = append(u.Documents, NewFileDocument(f, lang, filepath.Join(root, filepath.FromSlash(f))))
			}
		}
	}

	sort.SliceStable(units, func(i, j int) bool {
		if units[i].Dir != units[j].Dir {
			return units[i].Dir < units[j].Dir
		}
		return units[i].Name < units[j].Name
	})
	for _, u := range units {
		sort.Slice(u.Documents, func(i, j int) bool {
			return u.Documents[i].Path < u.Documents[j].Path
		})
	}
	return units
}

// owningUnits returns the units declared in the directory closest to file.
func owningUnits(byDir map[string][]*Unit, file string) []*Unit {
	dir := filepath.ToSlash(filepath.Dir(file))
	for {
		if us, ok := byDir[dir]; ok {
			return us
		}
		if dir == "." || dir == "/" || dir == "" {
			return nil
		}
		dir = filepath.ToSlash(filepath.Dir(dir))
	}
}
