// Package doclint reports functions without a doc comment.
package doclint

import (
	"bufio"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Finding is one function missing its doc comment.
type Finding struct {
	Pos  token.Position
	Name string
}

// String formats the finding like a compiler diagnostic.
func (f Finding) String() string {
	return fmt.Sprintf("%s:%d:%d: missing doc comment for function %q", f.Pos.Filename, f.Pos.Line, f.Pos.Column, f.Name)
}

// Config holds the exclusions shared with golangci-lint.
type Config struct {
	Issues struct {
		MaxIssuesPerLinter int      `yaml:"max-issues-per-linter"`
		ExcludeDirs        []string `yaml:"exclude-dirs"`
		ExcludeFiles       []string `yaml:"exclude-files"`
	} `yaml:"issues"`
}

// LoadConfig reads a golangci-lint YAML file. A missing file yields an empty Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Check walks root and returns every function with a body but no doc comment.
// Directories starting with "_" or "." and testdata are skipped, as the go tool does.
// The second result reports whether the issue limit truncated the list.
func Check(root string, cfg Config) ([]Finding, bool, error) {
	excludeDirs := normaliseDirs(cfg.Issues.ExcludeDirs)
	excludeRegex, err := compileRegexps(cfg.Issues.ExcludeFiles)
	if err != nil {
		return nil, false, err
	}
	limit := cfg.Issues.MaxIssuesPerLinter

	fset := token.NewFileSet()
	var findings []Finding
	errLimit := errors.New("limit")
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata") {
				return filepath.SkipDir
			}
			if shouldExclude(rel, excludeDirs, nil) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || shouldExclude(rel, excludeDirs, excludeRegex) || isGeneratedFile(path) {
			return nil
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return fmt.Errorf("parse %s: %w", rel, err)
		}
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Body == nil {
				continue
			}
			if fn.Doc != nil && strings.TrimSpace(fn.Doc.Text()) != "" {
				continue
			}
			pos := fset.Position(fn.Pos())
			pos.Filename = rel
			findings = append(findings, Finding{Pos: pos, Name: fn.Name.Name})
			if limit > 0 && len(findings) >= limit {
				return errLimit
			}
		}
		return nil
	})
	if errors.Is(err, errLimit) {
		return findings, true, nil
	}
	return findings, false, err
}

// isGeneratedFile checks if the file starts with the standard "Code generated" header.
func isGeneratedFile(filename string) bool {
	f, err := os.Open(filename)
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for i := 0; i < 10 && scanner.Scan(); i++ {
		line := scanner.Text()
		if strings.Contains(line, "Code generated") || strings.Contains(line, "DO NOT EDIT") {
			return true
		}
	}
	return false
}

// normaliseDirs trims "./" prefixes and converts to forward slashes.
func normaliseDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = strings.TrimSpace(strings.TrimPrefix(d, "./"))
		if d == "" {
			continue
		}
		out = append(out, filepath.ToSlash(strings.TrimSuffix(d, "/")))
	}
	return out
}

// compileRegexps compiles the exclude-files patterns.
func compileRegexps(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rx, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude regex %q: %w", p, err)
		}
		out = append(out, rx)
	}
	return out, nil
}

// shouldExclude reports whether rel falls under an excluded directory or matches a file pattern.
func shouldExclude(rel string, dirs []string, regex []*regexp.Regexp) bool {
	for _, d := range dirs {
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	for _, rx := range regex {
		if rx.MatchString(rel) {
			return true
		}
	}
	return false
}
