package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readArchive(t *testing.T, name string) map[string]string {
	t.Helper()

	r, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("unable to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("unable to read %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestReport_Archive(t *testing.T) {
	dir := t.TempDir()

	conf := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}
	rpt, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	logName := filepath.Join(dir, "run.log")
	if err := os.WriteFile(logName, []byte("log line\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "chapter")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "raw.xhtml"), []byte("<p/>"), 0644); err != nil {
		t.Fatal(err)
	}

	rpt.Store("final.log", logName)
	rpt.Store("chapter", sub)
	rpt.Store("missing.log", filepath.Join(dir, "never-written.log"))
	rpt.StoreData("session.txt", []byte("one"))
	rpt.StoreData("session.txt", []byte("two"))

	if err := rpt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	files := readArchive(t, conf.Destination)
	if files["final.log"] != "log line\n" {
		t.Errorf("final.log = %q", files["final.log"])
	}
	if files["chapter/raw.xhtml"] != "<p/>" {
		t.Errorf("chapter/raw.xhtml = %q", files["chapter/raw.xhtml"])
	}
	if _, ok := files["missing.log"]; ok {
		t.Error("absent file must not be archived")
	}
	if files["session.txt"] != "one" {
		t.Errorf("session.txt = %q", files["session.txt"])
	}
	var versioned int
	for name := range files {
		if strings.HasPrefix(name, "session.txt-") {
			versioned++
		}
	}
	if versioned != 1 {
		t.Errorf("expected one versioned entry, got %d", versioned)
	}
	if !strings.Contains(files["MANIFEST"], "final.log") {
		t.Errorf("MANIFEST does not list final.log:\n%s", files["MANIFEST"])
	}
}

func TestReport_Store_Conflict(t *testing.T) {
	rpt := &Report{entries: make(map[string]entry)}
	rpt.Store("final.log", "/tmp/a.log")
	rpt.Store("final.log", "/tmp/a.log")

	defer func() {
		if recover() == nil {
			t.Error("expected panic when entry is reused for another path")
		}
	}()
	rpt.Store("final.log", "/tmp/b.log")
}

func TestReport_Nil(t *testing.T) {
	var r *Report
	r.Store("a", "b")
	r.StoreData("a", nil)
	if r.Name() != "" {
		t.Error("nil report must have empty name")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
}

func TestReport_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
