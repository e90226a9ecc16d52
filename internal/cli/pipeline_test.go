package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/yapi2zod/internal/store"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"paths:\n" +
	"  /hello:\n" +
	"    get:\n" +
	"      operationId: hello\n" +
	"      summary: Hello\n" +
	"      parameters:\n" +
	"        - { name: who, in: query, required: true, schema: { type: string } }\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"          content:\n" +
	"            application/json:\n" +
	"              schema:\n" +
	"                type: object\n" +
	"                properties:\n" +
	"                  data:\n" +
	"                    type: object\n" +
	"                    properties:\n" +
	"                      greeting: { type: string }\n"

const petsYAML = `openapi: 3.0.0
info: { title: Pets, version: "1.0.0" }
paths:
  /pets:
    get:
      summary: List pets
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: { type: object, properties: { data: { type: object, properties: { total: { type: integer } } } } }
    post:
      summary: Create pet
      requestBody:
        content:
          application/json:
            schema: { type: object, properties: { name: { type: string } } }
      responses:
        "201": { description: created }
  /pets/{id}:
    get:
      summary: Show pet
      parameters:
        - { name: id, in: path, required: true, schema: { type: string } }
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: { type: object, properties: { data: { type: object, properties: { name: { type: string } } } } }
`

type pipeline struct {
	dir    string
	doc    string
	outDir string
	state  string
	stdout bytes.Buffer
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()
	p := &pipeline{
		dir:    dir,
		doc:    filepath.Join(dir, "openapi.yaml"),
		outDir: filepath.Join(dir, "out"),
		state:  filepath.Join(dir, "state.db"),
	}
	if err := os.WriteFile(p.doc, []byte(minimalSpecYAML), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return p
}

func (p *pipeline) run(t *testing.T, extra ...string) error {
	t.Helper()
	p.stdout.Reset()
	root := NewRootCmd()
	root.SetOut(&p.stdout)
	root.SetErr(io.Discard)
	args := append([]string{"generate", "--openapi", p.doc, "--out", p.outDir, "--state-file", p.state}, extra...)
	root.SetArgs(args)
	return root.Execute()
}

func (p *pipeline) history(t *testing.T) []store.Entry {
	t.Helper()
	db, err := store.Open(context.Background(), p.state)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	entries, err := db.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	return entries
}

func TestGeneratePipeline_DryRun(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)

	if err := p.run(t, "--dry-run"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := p.stdout.String()
	if !strings.Contains(out, "Planned writes to") || !strings.Contains(out, "- hello.ts (create)") {
		t.Fatalf("expected dry-run plan output, got: %s", out)
	}
	// Dry-run should not create the directory
	if _, err := os.Stat(p.outDir); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
	entries := p.history(t)
	if len(entries) != 1 || entries[0].Status != store.StatusPlanned || entries[0].File != "hello.ts" {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

func TestGeneratePipeline_WriteSkipForce(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)
	target := filepath.Join(p.outDir, "hello.ts")

	if err := p.run(t); err != nil {
		t.Fatalf("execute: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"import z from 'zod';",
		"export const HelloReqModel = z.object({",
		"export const HelloResModel = z.object({",
		"export type HelloReqType = z.infer<typeof HelloReqModel>;",
		"export const HelloApiDef = BizRemoteRequestApiDef.url(",
		".method('GET')",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("output missing %q:\n%s", want, content)
		}
	}

	if err := os.WriteFile(target, []byte("keep"), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := p.run(t); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if data, _ := os.ReadFile(target); string(data) != "keep" {
		t.Fatalf("existing file modified without --force")
	}

	if err := p.run(t, "--force", "--no-history"); err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if data, _ := os.ReadFile(target); string(data) != content {
		t.Fatalf("expected regenerated content after --force")
	}

	entries := p.history(t)
	if len(entries) != 2 {
		t.Fatalf("expected two recorded entries, got %+v", entries)
	}
	if entries[0].Status != store.StatusSkipped || entries[1].Status != store.StatusWritten {
		t.Fatalf("unexpected statuses: %+v", entries)
	}
}

func TestGeneratePipeline_Stdout(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)

	if err := p.run(t, "--stdout", "--no-history"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := p.stdout.String()
	if !strings.HasPrefix(out, "// hello.ts\nimport z from 'zod';") {
		t.Fatalf("unexpected stdout: %s", out)
	}
	if _, err := os.Stat(p.outDir); err == nil {
		t.Fatalf("expected no files with --stdout")
	}
	if _, err := os.Stat(p.state); err == nil {
		t.Fatalf("expected no state file with --no-history")
	}
}

func TestGeneratePipeline_SharedLastSegment(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)
	if err := os.WriteFile(p.doc, []byte(petsYAML), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}

	if err := p.run(t); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := map[string]string{
		"get-pets.ts":       "export const GetPetsResModel = z.object({",
		"post-pets.ts":      "export const PostPetsReqModel = z.object({",
		"get-pets-by-id.ts": "export const GetPetsByIdResModel = z.object({",
	}
	entries, err := os.ReadDir(p.outDir)
	if err != nil {
		t.Fatalf("read out dir: %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(entries))
	}
	for name, decl := range want {
		data, err := os.ReadFile(filepath.Join(p.outDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), decl) {
			t.Fatalf("%s missing %q:\n%s", name, decl, data)
		}
	}
	for _, e := range p.history(t) {
		if e.Status != store.StatusWritten {
			t.Fatalf("unexpected history entry: %+v", e)
		}
	}
}

func TestGeneratePipeline_TagFilterEmpty(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)

	if err := p.run(t, "--include-tags", "nothing"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := os.Stat(p.outDir); err == nil {
		t.Fatalf("expected no output when every operation is filtered")
	}
}

func TestGeneratePipeline_BadDocument(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)
	if err := os.WriteFile(p.doc, []byte("info: {}\n"), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}

	err := p.run(t)
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "Location: ") {
		t.Fatalf("expected location in message, got %v", err)
	}
}
