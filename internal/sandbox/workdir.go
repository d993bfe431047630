package sandbox

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
	faberrors "github.com/ideaforge/fab/internal/errors"
)

// workdir is the isolated filesystem view for one sandbox run. It exposes
// exactly the read-only and writeable file sets declared in the task
// specification, copied from the caller's working tree; no other paths
// are visible to the agent process. A workdir is exclusively owned by one
// engine invocation and never shared across concurrent runs.
type workdir struct {
	// root is the temporary directory the agent process runs in.
	root string

	// workTree is the caller's tree the view was materialized from.
	workTree string

	// writable are the relative paths the agent may modify.
	writable []string

	// snapshot maps each writable path to its pre-run content hash.
	// Paths absent from the tree at materialize time hash to "".
	snapshot map[string]string
}

// materialize builds the isolated view for spec under parent. Read-only
// context files are copied with write permission stripped; writeable
// targets keep their mode. Missing writeable targets are allowed (the
// agent may create them); missing read-only files are a setup error.
func materialize(parent string, spec *domain.SandboxSpec) (*workdir, error) {
	root, err := os.MkdirTemp(parent, constants.SandboxDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox root: %w", err)
	}

	wd := &workdir{
		root:     root,
		workTree: spec.WorkTree,
		writable: append([]string(nil), spec.WritablePaths...),
		snapshot: make(map[string]string, len(spec.WritablePaths)),
	}

	for _, rel := range spec.ReadOnlyPaths {
		src := filepath.Join(spec.WorkTree, rel)
		if err := copyFile(src, filepath.Join(root, rel), 0o444); err != nil {
			_ = wd.release()
			return nil, fmt.Errorf("failed to expose read-only file '%s': %w", rel, err)
		}
	}

	for _, rel := range spec.WritablePaths {
		src := filepath.Join(spec.WorkTree, rel)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			wd.snapshot[rel] = ""
			continue
		}
		if err := copyFile(src, filepath.Join(root, rel), 0o644); err != nil {
			_ = wd.release()
			return nil, fmt.Errorf("failed to expose writeable file '%s': %w", rel, err)
		}
		sum, err := hashFile(filepath.Join(root, rel))
		if err != nil {
			_ = wd.release()
			return nil, fmt.Errorf("failed to snapshot '%s': %w", rel, err)
		}
		wd.snapshot[rel] = sum
	}

	return wd, nil
}

// diff compares the writeable set against its pre-run snapshot and
// returns the relative paths whose content changed, sorted. Files the
// agent deleted count as changed.
func (w *workdir) diff() ([]string, error) {
	changed := make([]string, 0, len(w.writable))
	for _, rel := range w.writable {
		path := filepath.Join(w.root, rel)
		var sum string
		if _, err := os.Stat(path); err == nil {
			s, err := hashFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to hash '%s': %w", rel, err)
			}
			sum = s
		}
		if sum != w.snapshot[rel] {
			changed = append(changed, rel)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// syncBack copies changed writeable files from the sandbox back into the
// caller's working tree so partial work is surfaced, never discarded.
// Files deleted inside the sandbox are left untouched in the tree.
func (w *workdir) syncBack(changed []string) error {
	for _, rel := range changed {
		src := filepath.Join(w.root, rel)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src, filepath.Join(w.workTree, rel), 0o644); err != nil {
			return fmt.Errorf("failed to sync back '%s': %w", rel, err)
		}
	}
	return nil
}

// release removes the isolated view. Safe to call multiple times.
func (w *workdir) release() error {
	if w.root == "" {
		return nil
	}
	err := os.RemoveAll(w.root)
	w.root = ""
	return err
}

// validateSpec rejects malformed task specifications before any resources
// are allocated.
func validateSpec(spec *domain.SandboxSpec) error {
	if spec == nil {
		return fmt.Errorf("spec is nil: %w", faberrors.ErrSpecInvalid)
	}
	if spec.Budget.Timeout <= 0 {
		return fmt.Errorf("timeout is required, there is no run-forever mode: %w", faberrors.ErrSpecInvalid)
	}
	if spec.WorkTree == "" {
		return fmt.Errorf("work tree is required: %w", faberrors.ErrSpecInvalid)
	}
	if len(spec.WritablePaths) == 0 {
		return fmt.Errorf("at least one writeable target is required: %w", faberrors.ErrSpecInvalid)
	}
	ro := make(map[string]struct{}, len(spec.ReadOnlyPaths))
	for _, rel := range spec.ReadOnlyPaths {
		if !validRelPath(rel) {
			return fmt.Errorf("read-only path '%s' escapes the work tree: %w", rel, faberrors.ErrSpecInvalid)
		}
		ro[rel] = struct{}{}
	}
	for _, rel := range spec.WritablePaths {
		if !validRelPath(rel) {
			return fmt.Errorf("writeable path '%s' escapes the work tree: %w", rel, faberrors.ErrSpecInvalid)
		}
		if _, dup := ro[rel]; dup {
			return fmt.Errorf("path '%s' is both read-only and writeable: %w", rel, faberrors.ErrSpecInvalid)
		}
	}
	return nil
}

// validRelPath reports whether rel stays within the work tree.
func validRelPath(rel string) bool {
	if rel == "" || filepath.IsAbs(rel) {
		return false
	}
	clean := filepath.Clean(rel)
	return clean != ".." && !hasDotDotPrefix(clean)
}

func hasDotDotPrefix(clean string) bool {
	return clean == ".." || len(clean) >= 3 && clean[:3] == ".."+string(filepath.Separator)
}

// copyFile copies src to dst with the given mode, creating parent
// directories as needed.
func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src) //#nosec G304 -- paths are validated against the declared file sets
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode) //#nosec G304 -- path is constructed internally
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// hashFile returns the hex sha256 of the file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path) //#nosec G304 -- path is constructed internally
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
