// Package dirs resolves the host application's managed directory classes
// (input, output, temp). Gallery items are addressed class-relative as
// {filename, subfolder, type} by the host's content pipeline; this
// package maps between those references and absolute paths, and gathers
// the candidate image pool for indexing.
package dirs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Class names a managed directory.
type Class string

const (
	ClassInput  Class = "input"
	ClassOutput Class = "output"
	ClassTemp   Class = "temp"
)

// Ref addresses a file relative to a directory class.
type Ref struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// imageExtensions are the pool file types considered searchable.
var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {},
	".bmp": {}, ".gif": {}, ".tiff": {}, ".tif": {},
}

// IsImageFile reports whether name carries a searchable image extension.
func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Dirs holds the absolute roots of the three managed directory classes.
type Dirs struct {
	Input  string
	Output string
	Temp   string
}

// Gather walks the enabled directory classes in input, output, temp order
// and returns every image file found. Missing roots and unreadable
// subtrees are skipped silently.
func (d Dirs) Gather(input, output, temp bool) []string {
	var roots []string
	if input {
		roots = append(roots, d.Input)
	}
	if output {
		roots = append(roots, d.Output)
	}
	if temp {
		roots = append(roots, d.Temp)
	}

	var files []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !entry.IsDir() && IsImageFile(entry.Name()) {
				files = append(files, path)
			}
			return nil
		})
	}
	return files
}

// Classify maps an absolute path back to a class-relative reference.
// Classes are probed in input, output, temp order; a path outside every
// class is reported as a bare output filename.
func (d Dirs) Classify(path string) Ref {
	classes := []struct {
		root  string
		class Class
	}{
		{d.Input, ClassInput},
		{d.Output, ClassOutput},
		{d.Temp, ClassTemp},
	}

	for _, c := range classes {
		if c.root == "" {
			continue
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
			continue
		}
		subfolder := filepath.Dir(rel)
		if subfolder == "." {
			subfolder = ""
		}
		return Ref{
			Filename:  filepath.Base(path),
			Subfolder: subfolder,
			Type:      string(c.class),
		}
	}

	return Ref{Filename: filepath.Base(path), Type: string(ClassOutput)}
}

// Resolve maps a class-relative reference to an absolute path. Unknown
// types resolve against the output root, matching how the host treats
// them.
func (d Dirs) Resolve(ref Ref) string {
	var base string
	switch Class(ref.Type) {
	case ClassInput:
		base = d.Input
	case ClassTemp:
		base = d.Temp
	default:
		base = d.Output
	}

	if ref.Subfolder != "" {
		return filepath.Join(base, ref.Subfolder, ref.Filename)
	}
	return filepath.Join(base, ref.Filename)
}
