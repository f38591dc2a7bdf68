package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyTarget   = errors.New("empty delete target")
	ErrProtectedPath = errors.New("protected path")
	ErrOutsideRoot   = errors.New("outside scan root")
	ErrRootTarget    = errors.New("scan root itself cannot be deleted")
	ErrTraversal     = errors.New("path traversal detected")
	ErrSymlinkEscape = errors.New("symlink escape detected")
)

// Validator guards every removal performed by the deletion executor.
// A target must sit strictly below the scan root, outside the protected
// system paths, and must not resolve through a symlink to somewhere else.
type Validator struct {
	Root      string
	Protected []string
}

// NewValidator creates a validator for a scan root with optional extra protected paths
func NewValidator(root string, extraProtected []string) *Validator {
	r, err := absClean(root)
	if err != nil {
		r = filepath.Clean(root)
	}
	return &Validator{
		Root:      r,
		Protected: protectedPaths(extraProtected),
	}
}

// Check returns nil when path may be removed, otherwise one of the sentinel errors
func (v *Validator) Check(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyTarget
	}
	if hasDotDot(path) {
		return ErrTraversal
	}

	p, err := absClean(path)
	if err != nil {
		return ErrEmptyTarget
	}

	if IsProtected(p, v.Protected) {
		return ErrProtectedPath
	}
	if p == v.Root {
		return ErrRootTarget
	}
	if !Within(p, v.Root) {
		return ErrOutsideRoot
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// Nothing to resolve; the remove call reports the missing file itself.
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !Within(filepath.Clean(resolved), resolvedRoot(v.Root)) {
		return ErrSymlinkEscape
	}
	return nil
}

// Within reports whether path equals root or lies below it
func Within(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	if root == string(os.PathSeparator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

// IsProtected checks path against the protected list.
// "/" only protects itself, every other entry protects its whole subtree.
func IsProtected(path string, protected []string) bool {
	p := filepath.Clean(path)
	if p == string(os.PathSeparator) {
		return true
	}
	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if prot == string(os.PathSeparator) {
			continue
		}
		if Within(p, prot) {
			return true
		}
	}
	return false
}

func hasDotDot(raw string) bool {
	for _, part := range strings.Split(filepath.ToSlash(raw), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func absClean(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// resolvedRoot follows symlinks in the root so that a root like /tmp on
// macOS (really /private/tmp) still contains its own resolved children.
func resolvedRoot(root string) string {
	r, err := filepath.EvalSymlinks(root)
	if err != nil {
		return root
	}
	return filepath.Clean(r)
}

func protectedPaths(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/proc",
		"/sys",
		"/dev",
	}
	for _, e := range extra {
		if strings.TrimSpace(e) != "" {
			base = append(base, e)
		}
	}
	return base
}
