package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const mainTestPrefix = "cmd/nanoservices:main_test"

const sampleLog = `2026/03/07 10:00:00 [R] [call] {"service":"api.signup","params":{"phone":"1"}}
2026/03/07 10:00:00 [R:1] [call] {"service":"user.get","params":{}}
2026/03/07 10:00:01 [R:1] [result] {"spent":5,"result":{"id":1}}
2026/03/07 10:00:01 [R:2] [debug] hello world
2026/03/07 10:00:02 [R] [result] {"spent":20,"result":true}
2026/03/07 10:00:02 [Q] [log] other
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "call.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("%s - write log: %v", mainTestPrefix, err)
	}
	return path
}

func runExec(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	err := exec(context.Background(), stdin, &stdout, &stderr, args)
	return stdout.String(), stderr.String(), err
}

func TestExec_NoSubcommandPrintsHelp(t *testing.T) {
	_, stderr, err := runExec(t, nil)
	if err != nil {
		t.Fatalf("%s - exec: %v", mainTestPrefix, err)
	}
	for _, word := range []string{"serve", "showlog", "ids", "follow", "migrate", "clear"} {
		if !strings.Contains(stderr, word) {
			t.Errorf("%s - help should mention %q", mainTestPrefix, word)
		}
	}
}

func TestExec_UnknownFlag(t *testing.T) {
	if _, _, err := runExec(t, nil, "showlog", "--bogus"); err == nil {
		t.Errorf("%s - expected error for unknown flag", mainTestPrefix)
	}
}

func TestShowlog_ListsIDsWithoutPrefix(t *testing.T) {
	path := writeLog(t, sampleLog)
	stdout, _, err := runExec(t, nil, "showlog", "--file", path)
	if err != nil {
		t.Fatalf("%s - showlog: %v", mainTestPrefix, err)
	}
	want := "Q\nR\nR:1\nR:2\n"
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Errorf("%s - output mismatch (-want +got):\n%s", mainTestPrefix, diff)
	}
}

func TestShowlog_RendersTree(t *testing.T) {
	path := writeLog(t, sampleLog)
	stdout, _, err := runExec(t, nil, "showlog", path, "R")
	if err != nil {
		t.Fatalf("%s - showlog: %v", mainTestPrefix, err)
	}
	want := `id: R
  - 10:00:00 call api.signup {"phone":"1"}
  - 10:00:02 result 20ms true
    id: R:1
      - 10:00:00 call user.get {}
      - 10:00:01 result 5ms {"id":1}
    id: R:2
      - 10:00:01 debug hello world
`
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Errorf("%s - output mismatch (-want +got):\n%s", mainTestPrefix, diff)
	}
}

func TestShowlog_Stdin(t *testing.T) {
	stdout, _, err := runExec(t, strings.NewReader(sampleLog), "showlog", "--prefix", "R:1")
	if err != nil {
		t.Fatalf("%s - showlog: %v", mainTestPrefix, err)
	}
	if !strings.HasPrefix(stdout, "id: R:1\n") {
		t.Errorf("%s - output = %q, want subtree of R:1", mainTestPrefix, stdout)
	}
	if strings.Contains(stdout, "api.signup") {
		t.Errorf("%s - output should not include the parent: %q", mainTestPrefix, stdout)
	}
}

func TestShowlog_UnknownPrefix(t *testing.T) {
	path := writeLog(t, sampleLog)
	if _, _, err := runExec(t, nil, "showlog", "--file", path, "--prefix", "Z"); err == nil {
		t.Errorf("%s - expected error for a prefix with no records", mainTestPrefix)
	}
}

func TestShowlog_MalformedLine(t *testing.T) {
	path := writeLog(t, sampleLog+"not a trace line\n")

	if _, _, err := runExec(t, nil, "showlog", "--file", path, "--prefix", "R"); err == nil {
		t.Errorf("%s - expected error for malformed line", mainTestPrefix)
	}
	if _, _, err := runExec(t, nil, "showlog", "--file", path, "--prefix", "R", "--ignore-errors"); err != nil {
		t.Errorf("%s - --ignore-errors: %v", mainTestPrefix, err)
	}
}

func TestShowlog_MissingFile(t *testing.T) {
	if _, _, err := runExec(t, nil, "showlog", "--file", filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Errorf("%s - expected error for missing file", mainTestPrefix)
	}
}

func TestIDs(t *testing.T) {
	path := writeLog(t, sampleLog)
	stdout, _, err := runExec(t, nil, "ids", "--prefix", "R", path)
	if err != nil {
		t.Fatalf("%s - ids: %v", mainTestPrefix, err)
	}
	want := "R\nR:1\nR:2\n"
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Errorf("%s - output mismatch (-want +got):\n%s", mainTestPrefix, diff)
	}
}

func TestFollow_Stdin(t *testing.T) {
	stdout, _, err := runExec(t, strings.NewReader(sampleLog), "follow", "--prefix", "R:1")
	if err != nil {
		t.Fatalf("%s - follow: %v", mainTestPrefix, err)
	}
	want := `10:00:00        R:1 call {"service":"user.get","params":{}}
10:00:01        R:1 result {"spent":5,"result":{"id":1}}
`
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Errorf("%s - output mismatch (-want +got):\n%s", mainTestPrefix, diff)
	}
}

func TestFollow_FileWithoutPolling(t *testing.T) {
	path := writeLog(t, sampleLog)
	stdout, _, err := runExec(t, nil, "follow", "--poll", "0s", "--prefix", "Q", path)
	if err != nil {
		t.Fatalf("%s - follow: %v", mainTestPrefix, err)
	}
	if want := "10:00:02    Q log other\n"; stdout != want {
		t.Errorf("%s - output = %q, want %q", mainTestPrefix, stdout, want)
	}
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, _, err := runExec(t, nil, "migrate", "up"); err == nil {
		t.Errorf("%s - expected error without DATABASE_URL", mainTestPrefix)
	}
}

func TestMigrate_RequiresSubcommand(t *testing.T) {
	if _, _, err := runExec(t, nil, "migrate"); err == nil {
		t.Errorf("%s - expected error without subcommand", mainTestPrefix)
	}
}

func TestTailReader_WaitsForAppendedData(t *testing.T) {
	path := writeLog(t, "")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("%s - open: %v", mainTestPrefix, err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := &tailReader{ctx: ctx, r: f, poll: 5 * time.Millisecond}

	go func() {
		time.Sleep(20 * time.Millisecond)
		os.WriteFile(path, []byte("hello\n"), 0o644)
	}()

	buf := make([]byte, 16)
	n, err := tr.Read(buf)
	if err != nil {
		t.Fatalf("%s - Read: %v", mainTestPrefix, err)
	}
	if got := string(buf[:n]); got != "hello\n" {
		t.Errorf("%s - Read = %q, want hello", mainTestPrefix, got)
	}

	cancel()
	if _, err := tr.Read(buf); !errors.Is(err, context.Canceled) {
		t.Errorf("%s - Read after cancel err = %v, want context.Canceled", mainTestPrefix, err)
	}
}
