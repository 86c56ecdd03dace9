package types

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectPathEnv names the fallback project location consulted after the
// editor-reported path.
const ProjectPathEnv = "PROJECT_PATH"

// ProjectRootCandidates lists project base directories in probe order:
// editor-reported path, PROJECT_PATH, configured path, then the Cocos project
// containing the working directory.
func ProjectRootCandidates(editorPath, configuredPath string) []string {
	var candidates []string
	seen := map[string]bool{}
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		if seen[clean] {
			return
		}
		seen[clean] = true
		candidates = append(candidates, clean)
	}

	add(editorPath)
	add(os.Getenv(ProjectPathEnv))
	add(configuredPath)
	if wd, err := os.Getwd(); err == nil {
		add(FindProjectRootFromDir(wd))
		add(wd)
	}
	return candidates
}

// FindProjectRootFromDir walks upward looking for a Cocos project (package.json
// next to an assets directory). It returns startDir when none is found.
func FindProjectRootFromDir(startDir string) string {
	dir := startDir
	for {
		if isCocosProject(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return startDir
}

func isCocosProject(dir string) bool {
	manifest, err := os.Stat(filepath.Join(dir, "package.json"))
	if err != nil || manifest.IsDir() {
		return false
	}
	assets, err := os.Stat(filepath.Join(dir, "assets"))
	return err == nil && assets.IsDir()
}

// ResolveProjectFile joins a project-relative path onto root, rejecting
// absolute paths and traversal outside the root.
func ResolveProjectFile(root, relative string) (string, error) {
	rel := strings.TrimSpace(relative)
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed")
	}
	rel = strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "./")

	cleanRel := filepath.Clean(rel)
	if cleanRel == "." || cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes project root")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	fullAbs, err := filepath.Abs(filepath.Join(rootAbs, cleanRel))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !isWithinRoot(fullAbs, rootAbs) {
		return "", fmt.Errorf("path escapes project root")
	}
	return fullAbs, nil
}

// FirstExistingProjectFile probes each candidate root for relative and returns
// the first regular file found.
func FirstExistingProjectFile(candidates []string, relative string) (string, bool) {
	for _, root := range candidates {
		path, err := ResolveProjectFile(root, relative)
		if err != nil {
			continue
		}
		if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func isWithinRoot(path string, root string) bool {
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)
	rootWithSep := cleanRoot + string(filepath.Separator)
	if cleanPath == cleanRoot {
		return true
	}
	return strings.HasPrefix(cleanPath, rootWithSep)
}
