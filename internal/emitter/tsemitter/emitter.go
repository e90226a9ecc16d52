// Package tsemitter writes generated TypeScript files into an output
// directory.
package tsemitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls where and how files are written.
type Options struct {
	OutDir string // required
	Force  bool   // overwrite existing files
	DryRun bool   // plan only
	Logger zerolog.Logger
}

// File is one generated file. Name is relative to OutDir.
type File struct {
	Name    string
	Content []byte
	// Source identifies the endpoint the file came from, for messages.
	Source string
}

// Action says what Emit does with a file.
type Action string

const (
	ActionCreate    Action = "create"
	ActionOverwrite Action = "overwrite"
	ActionSkip      Action = "skip"     // exists and Force is off
	ActionConflict  Action = "conflict" // another file in the batch has the same name
)

// PlannedFile describes one file of the plan.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
	Action  Action
	Source  string
}

// Result is the plan, in name order, plus per-file failures keyed by
// File.Source (or File.Name when Source is empty).
type Result struct {
	OutDir  string
	Planned []PlannedFile
	Errors  map[string]error
}

// Count returns how many planned files have action a.
func (r *Result) Count(a Action) int {
	n := 0
	for _, p := range r.Planned {
		if p.Action == a {
			n++
		}
	}
	return n
}

// ErrConflict marks files dropped because an earlier file in the batch
// had the same name.
var ErrConflict = errors.New("duplicate output file name")

// Emit plans files and, unless DryRun, writes them with temp file plus
// rename. Existing files are skipped unless Force. When several files
// share a name the first one wins. A failure on one file does not stop
// the others.
func Emit(ctx context.Context, files []File, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, errors.New("tsemitter: OutDir is required")
	}
	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("tsemitter: resolve out dir: %w", err)
	}
	res := &Result{OutDir: abs, Errors: map[string]error{}}

	seen := map[string]bool{}
	for _, f := range files {
		key := f.Source
		if key == "" {
			key = f.Name
		}
		rel, err := cleanName(f.Name)
		if err != nil {
			res.Errors[key] = err
			continue
		}
		pf := PlannedFile{RelPath: rel, Size: len(f.Content), Mode: 0o644, Source: f.Source}
		switch {
		case seen[rel]:
			pf.Action = ActionConflict
			res.Errors[key] = fmt.Errorf("%s: %w", rel, ErrConflict)
		case exists(filepath.Join(abs, rel)):
			pf.Action = ActionSkip
			if opts.Force {
				pf.Action = ActionOverwrite
			}
		default:
			pf.Action = ActionCreate
		}
		seen[rel] = true
		res.Planned = append(res.Planned, pf)

		if opts.DryRun || (pf.Action != ActionCreate && pf.Action != ActionOverwrite) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := writeFile(abs, rel, f.Content); err != nil {
			res.Errors[key] = err
			continue
		}
		opts.Logger.Debug().Str("file", rel).Str("action", string(pf.Action)).Msg("wrote file")
	}

	sort.SliceStable(res.Planned, func(i, j int) bool { return res.Planned[i].RelPath < res.Planned[j].RelPath })
	return res, nil
}

// cleanName accepts a plain relative path that stays inside the output
// directory.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("tsemitter: empty file name")
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("tsemitter: file name %q escapes the output directory", name)
	}
	return filepath.ToSlash(clean), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFile(outDir, rel string, content []byte) error {
	p := filepath.Join(outDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := p + ".tmp-" + time.Now().Format("20060102150405.000000000")
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", rel, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	return nil
}
