// Package filetree provides stateless helpers over filesystem primitives:
// recursive listing, bulk deletion, and directory/file creation.
package filetree

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/coachpo/reuse/errs"
)

const component = "filetree"

// List walks root recursively and returns the paths of every regular entry
// that is not a directory. Traversal order is not part of the contract.
func List(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.New(component, errs.CodeNotFound,
			errs.WithOp("list"), errs.WithCause(err))
	}
	if !info.IsDir() {
		return nil, errs.New(component, errs.CodeInvalidArgument,
			errs.WithOp("list"),
			errs.WithMessage("root must be a directory"))
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errs.New(component, errs.CodeUnavailable,
			errs.WithOp("list"), errs.WithCause(err))
	}
	return files, nil
}

// ListFrom returns seed entries followed by a recursive listing of root.
func ListFrom(seed []string, root string) ([]string, error) {
	listed, err := List(root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seed)+len(listed))
	out = append(out, seed...)
	out = append(out, listed...)
	return out, nil
}

// Delete removes a file or an entire tree rooted at path. Deleting a path
// that does not exist is a not-found error.
func Delete(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return errs.New(component, errs.CodeNotFound,
			errs.WithOp("delete"), errs.WithCause(err))
	}
	if err := os.RemoveAll(path); err != nil {
		return errs.New(component, errs.CodeUnavailable,
			errs.WithOp("delete"), errs.WithCause(err))
	}
	return nil
}

// DeleteContents empties a directory without removing the directory itself.
func DeleteContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.New(component, errs.CodeNotFound,
			errs.WithOp("delete_contents"), errs.WithCause(err))
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return errs.New(component, errs.CodeUnavailable,
				errs.WithOp("delete_contents"), errs.WithCause(err))
		}
	}
	return nil
}

// CreateDirIfMissing creates dir (and any missing parents) and reports
// whether it created anything. An existing directory yields false, nil.
func CreateDirIfMissing(dir string) (bool, error) {
	if info, err := os.Stat(dir); err == nil {
		if info.IsDir() {
			return false, nil
		}
		return false, errs.New(component, errs.CodeInvalidArgument,
			errs.WithOp("create_dir"),
			errs.WithMessage("path exists and is not a directory"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, errs.New(component, errs.CodeUnavailable,
			errs.WithOp("create_dir"), errs.WithCause(err))
	}
	return true, nil
}

// RecreateFile deletes path when present and creates it anew as an empty
// file.
func RecreateFile(path string) error {
	if _, err := os.Lstat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return errs.New(component, errs.CodeUnavailable,
				errs.WithOp("recreate_file"), errs.WithCause(err))
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.New(component, errs.CodeUnavailable,
			errs.WithOp("recreate_file"), errs.WithCause(err))
	}
	return f.Close()
}
