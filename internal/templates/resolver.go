// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package templates

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Dirs configures where the resolver looks for template files and the asset
// files that templates reference.
type Dirs struct {
	TemplateDir     string // built-in template JSON files
	UserTemplateDir string // user template JSON files; shadow built-ins by name
	AssetDir        string // built-in include-file assets
	UserAssetDir    string // user include-file assets
	RepoRoot        string // final include-file search root
}

// Resolver merges built-in and file-backed template definitions and
// materializes include files into session workspaces.
type Resolver struct {
	dirs Dirs

	mu        sync.RWMutex
	templates map[string]*Template
}

// NewResolver creates the template and asset directories and performs the
// initial load.
func NewResolver(dirs Dirs) (*Resolver, error) {
	for _, dir := range []string{dirs.TemplateDir, dirs.UserTemplateDir, dirs.AssetDir, dirs.UserAssetDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create template dir %s: %w", dir, err)
		}
	}
	r := &Resolver{dirs: dirs}
	r.Refresh()
	return r, nil
}

// Refresh reloads the template set from disk.
func (r *Resolver) Refresh() {
	merged := make(map[string]*Template)
	for _, tpl := range builtins() {
		merged[tpl.Name] = tpl
	}
	for _, dir := range []string{r.dirs.TemplateDir, r.dirs.UserTemplateDir} {
		for _, tpl := range loadTemplateDir(dir) {
			merged[tpl.Name] = tpl
		}
	}

	r.mu.Lock()
	r.templates = merged
	r.mu.Unlock()
}

// loadTemplateDir parses every *.json file in dir. Files that fail to parse
// are skipped; the template key is the embedded name or the filename stem.
func loadTemplateDir(dir string) []*Template {
	if dir == "" {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil
	}
	sort.Strings(paths)
	var result []*Template
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var tpl Template
		if err := json.Unmarshal(data, &tpl); err != nil {
			continue
		}
		if tpl.Name == "" {
			tpl.Name = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		if tpl.Label == "" {
			tpl.Label = tpl.Name
		}
		tpl.Source = path
		result = append(result, &tpl)
	}
	return result
}

// Get returns the template with the given name.
func (r *Resolver) Get(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[name]
	return tpl, ok
}

// List returns all known templates sorted by label, case-insensitively.
func (r *Resolver) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Template, 0, len(r.templates))
	for _, tpl := range r.templates {
		result = append(result, tpl)
	}
	sort.Slice(result, func(i, j int) bool {
		li, lj := result[i].Label, result[j].Label
		if li == "" {
			li = result[i].Name
		}
		if lj == "" {
			lj = result[j].Name
		}
		return strings.ToLower(li) < strings.ToLower(lj)
	})
	return result
}

// Save persists a user template. includeSources are absolute file paths
// copied under the user asset directory and appended to the template's
// include_files. Returns the path of the written template file.
func (r *Resolver) Save(payload map[string]any, includeSources []string) (string, error) {
	name, _ := payload["name"].(string)
	if name == "" {
		return "", &Error{Msg: "template name is required"}
	}

	entries, err := normalizePayloadIncludes(payload["include_files"])
	if err != nil {
		return "", err
	}

	if len(includeSources) > 0 {
		assetRoot := filepath.Join(r.dirs.UserAssetDir, name)
		if err := os.MkdirAll(assetRoot, 0o755); err != nil {
			return "", fmt.Errorf("create asset dir %s: %w", assetRoot, err)
		}
		for _, source := range includeSources {
			info, err := os.Stat(source)
			if err != nil || info.IsDir() {
				continue
			}
			base := filepath.Base(source)
			if err := copyFile(source, filepath.Join(assetRoot, base)); err != nil {
				return "", err
			}
			entries = append(entries, map[string]any{
				"source": name + "/" + base,
				"target": base,
			})
		}
	}

	doc := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		doc[k] = v
	}
	doc["include_files"] = entries

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal template %s: %w", name, err)
	}
	destination := filepath.Join(r.dirs.UserTemplateDir, name+".json")
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", fmt.Errorf("create template dir: %w", err)
	}
	if err := os.WriteFile(destination, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write template %s: %w", destination, err)
	}
	r.Refresh()
	return destination, nil
}

// normalizePayloadIncludes keeps bare-string entries as-is and strips empty
// values from object entries, rejecting anything else.
func normalizePayloadIncludes(raw any) ([]any, error) {
	entries := []any{}
	list, ok := raw.([]any)
	if !ok && raw != nil {
		return nil, &Error{Msg: "include_files must be a list"}
	}
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
			entries = append(entries, v)
		case map[string]any:
			cleaned := make(map[string]any)
			for k, val := range v {
				if s, ok := val.(string); !ok || s != "" {
					cleaned[k] = val
				}
			}
			entries = append(entries, cleaned)
		default:
			return nil, &Error{Msg: "include_files entries must be strings or objects"}
		}
	}
	return entries, nil
}

// Delete removes a user template. Built-ins and unknown names are rejected.
func (r *Resolver) Delete(name string) error {
	tpl, ok := r.Get(name)
	if !ok || tpl.Source == SourceBuiltin {
		return &Error{Msg: fmt.Sprintf("template '%s' cannot be deleted (not a user template)", name)}
	}
	if err := os.Remove(tpl.Source); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove template %s: %w", tpl.Source, err)
	}
	r.Refresh()
	return nil
}

// MaterializeIncludes copies a template's include files into workspace.
// A TASKS.md include is implied when the template does not name one. Sources
// resolve against: absolute path, the built-in asset dir, the user asset
// dir, then the repo root; unresolvable sources are skipped. Existing
// destination files are never overwritten.
func (r *Resolver) MaterializeIncludes(tpl *Template, workspace string) error {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", workspace, err)
	}

	entries := make([]Include, 0, len(tpl.IncludeFiles)+1)
	entries = append(entries, tpl.IncludeFiles...)
	hasTasks := false
	for _, entry := range entries {
		target := entry.Target
		if target == "" {
			target = filepath.Base(entry.Source)
		}
		if strings.EqualFold(target, "TASKS.md") {
			hasTasks = true
			break
		}
	}
	if !hasTasks {
		entries = append(entries, Include{Source: "TASKS.md", Target: "TASKS.md"})
	}

	for _, entry := range entries {
		if entry.Source == "" {
			continue
		}
		target := entry.Target
		if target == "" {
			target = filepath.Base(entry.Source)
		}
		source := r.resolveAsset(entry.Source)
		if source == "" {
			continue
		}
		destination := filepath.Join(workspace, target)
		if _, err := os.Stat(destination); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
			return fmt.Errorf("create include dir: %w", err)
		}
		if err := copyFile(source, destination); err != nil {
			return err
		}
	}
	return nil
}

// resolveAsset finds the first existing file for an include-file reference.
func (r *Resolver) resolveAsset(reference string) string {
	if filepath.IsAbs(reference) {
		if _, err := os.Stat(reference); err == nil {
			return reference
		}
		return ""
	}
	for _, root := range []string{r.dirs.AssetDir, r.dirs.UserAssetDir, r.dirs.RepoRoot} {
		if root == "" {
			continue
		}
		candidate := filepath.Join(root, reference)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func copyFile(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer in.Close()
	out, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("create %s: %w", destination, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", destination, err)
	}
	return out.Close()
}
