package reflector

import (
	"encoding/xml"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ProjectFile is one project file found under the top-level directory.
type ProjectFile struct {
	Name string // file name without extension, as spelled on disk
	Path string
	Dir  string // project directory name relative to the top-level directory
	// Headers lists slash-separated header paths relative to the top-level
	// directory, excluding generated code.
	Headers []string
}

type vcxProject struct {
	ItemGroups []struct {
		ClIncludes []struct {
			Include string `xml:"Include,attr"`
		} `xml:"ClInclude"`
	} `xml:"ItemGroup"`
}

// DiscoverProjects finds project files matching glob in every immediate
// subdirectory of top and reads their header lists.
func DiscoverProjects(top, glob, generatedDir string) ([]ProjectFile, error) {
	entries, err := os.ReadDir(top)
	if err != nil {
		return nil, fmt.Errorf("reading top-level directory: %w", err)
	}
	var out []ProjectFile
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(top, e.Name(), glob))
		if err != nil {
			return nil, fmt.Errorf("matching %s: %w", glob, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			headers, err := readProjectHeaders(m, e.Name(), generatedDir)
			if err != nil {
				return nil, err
			}
			base := filepath.Base(m)
			out = append(out, ProjectFile{
				Name:    strings.TrimSuffix(base, filepath.Ext(base)),
				Path:    m,
				Dir:     e.Name(),
				Headers: headers,
			})
		}
	}
	return out, nil
}

func readProjectHeaders(projectPath, dir, generatedDir string) ([]string, error) {
	data, err := os.ReadFile(projectPath)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}
	var proj vcxProject
	if err := xml.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("parsing project file %s: %w", projectPath, err)
	}
	var headers []string
	for _, group := range proj.ItemGroups {
		for _, inc := range group.ClIncludes {
			if inc.Include == "" {
				continue
			}
			rel := path.Join(dir, strings.ReplaceAll(inc.Include, `\`, "/"))
			if isGenerated(rel, generatedDir) {
				continue
			}
			headers = append(headers, rel)
		}
	}
	return headers, nil
}

// isGenerated reports whether any directory component of rel is the
// generated-code directory.
func isGenerated(rel, generatedDir string) bool {
	parts := strings.Split(rel, "/")
	for _, p := range parts[:len(parts)-1] {
		if p == generatedDir {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
