package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"jclass/internal/catalog"
	"jclass/internal/classfile"
	"jclass/internal/classtest"
)

func classDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"Minimal.class": classtest.Minimal().Bytes(),
		"Junk.class":    []byte("junk"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s: %v", path, err)
	}
}

func TestCmdParse_Out(t *testing.T) {
	in := t.TempDir()
	if err := os.WriteFile(filepath.Join(in, "Minimal.class"), classtest.Minimal().Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	if err := cmdParse([]string{"--out", out, "--format", "cbor", in}); err != nil {
		t.Fatal(err)
	}
	mustExist(t, filepath.Join(out, "Minimal.cbor"))
}

func TestCmdParse_Failure(t *testing.T) {
	err := cmdParse([]string{"--out", t.TempDir(), classDir(t)})
	if err == nil {
		t.Fatal("expected error for junk class file")
	}
}

func TestCmdCFG(t *testing.T) {
	out := t.TempDir()
	if err := cmdCFG([]string{"--out", out, "--all", classDir(t)}); err != nil {
		t.Fatal(err)
	}
	mustExist(t, filepath.Join(out, "callgraph.dot"))
	mustExist(t, filepath.Join(out, "cfg", "Minimal", "_init_()V.dot"))
}

func TestCmdGraph(t *testing.T) {
	out := t.TempDir()
	if err := cmdGraph([]string{"--out", out, classDir(t)}); err != nil {
		t.Fatal(err)
	}
	mustExist(t, filepath.Join(out, "classgraph.dot"))
	mustExist(t, filepath.Join(out, "reachable.dot"))

	data, err := os.ReadFile(filepath.Join(out, "graph.json"))
	if err != nil {
		t.Fatal(err)
	}
	var s graphSummary
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatal(err)
	}
	if s.Classes != 1 || s.Methods != 1 || s.Edges != 1 || s.ClassEdges != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestCmdScan_Catalog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "catalog.db")
	out := t.TempDir()
	if err := cmdScan([]string{"--catalog", db, "--out", out, "--workers", "2", "-v", "0", classDir(t)}); err != nil {
		t.Fatal(err)
	}
	mustExist(t, filepath.Join(out, "Minimal.json"))

	cat, err := catalog.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	runs, err := cat.Runs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Files != 2 || runs[0].Parsed != 1 || runs[0].Failed != 1 {
		t.Fatalf("runs = %+v", runs)
	}
	failures, err := cat.Failures(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 1 || filepath.Base(failures[0].Path) != "Junk.class" {
		t.Errorf("failures = %+v", failures)
	}
	if err := cmdFind([]string{"--catalog", db, "--class", "Minimal"}); err != nil {
		t.Error(err)
	}
	if err := cmdFind([]string{"--catalog", db, "--class", "Missing"}); err == nil {
		t.Error("expected error for unknown class")
	}
}

func TestMethodRelPath(t *testing.T) {
	m := &classfile.Method{Name: "<init>", Descriptor: "(Ljava/lang/String;)V"}
	got := methodRelPath("com/example/A", m)
	want := "com/example/A/_init_(Ljava_lang_String_)V"
	if got != want {
		t.Errorf("methodRelPath = %q, want %q", got, want)
	}
}
