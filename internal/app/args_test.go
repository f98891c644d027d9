package app

import (
	"reflect"
	"testing"
)

func TestSplitGlobalFlagsSkipsDoubleDash(t *testing.T) {
	out, globals, err := splitGlobalFlags([]string{"--data-dir", "/tmp/saga", "--", "mcp", "--verbose"})
	if err != nil {
		t.Fatalf("splitGlobalFlags error: %v", err)
	}
	if globals.DataDir != "/tmp/saga" {
		t.Fatalf("unexpected data dir: %q", globals.DataDir)
	}
	if globals.Verbose {
		t.Fatal("--verbose after -- must not be treated as global")
	}
	want := []string{"mcp", "--verbose"}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("unexpected args: want=%v got=%v", want, out)
	}

	out, _, err = splitGlobalFlags([]string{"search", "--", "--verbose"})
	if err != nil {
		t.Fatalf("splitGlobalFlags error: %v", err)
	}
	if want := []string{"search", "--", "--verbose"}; !reflect.DeepEqual(out, want) {
		t.Fatalf("expected -- kept for the command: want=%v got=%v", want, out)
	}
}

func TestSplitGlobalFlagsDoubleDashOnly(t *testing.T) {
	out, globals, err := splitGlobalFlags([]string{"--"})
	if err != nil {
		t.Fatalf("splitGlobalFlags error: %v", err)
	}
	if globals.DataDir != "" {
		t.Fatalf("unexpected data dir: %q", globals.DataDir)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty args after --, got %v", out)
	}
}

func TestSplitGlobalFlagsAnywhere(t *testing.T) {
	out, globals, err := splitGlobalFlags([]string{"log", "--verbose", "--data-dir=/d", "--limit", "3"})
	if err != nil {
		t.Fatalf("splitGlobalFlags error: %v", err)
	}
	if !globals.Verbose || globals.DataDir != "/d" {
		t.Fatalf("unexpected globals: %+v", globals)
	}
	want := []string{"log", "--limit", "3"}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("unexpected args: want=%v got=%v", want, out)
	}

	if _, _, err := splitGlobalFlags([]string{"status", "--data-dir"}); err == nil {
		t.Fatal("expected missing value error")
	}
	if _, _, err := splitGlobalFlags([]string{"--data-dir=", "status"}); err == nil {
		t.Fatal("expected empty value error")
	}
}

func TestSplitFlagArgsInterleaved(t *testing.T) {
	spec := map[string]flagSpec{
		"type": {RequiresValue: true},
		"json": {},
	}
	positional, flags, err := splitFlagArgs([]string{"redis", "--type", "debugging", "timeout", "--json", "--", "--type"}, spec)
	if err != nil {
		t.Fatalf("splitFlagArgs error: %v", err)
	}
	if want := []string{"redis", "timeout", "--type"}; !reflect.DeepEqual(positional, want) {
		t.Fatalf("unexpected positional: want=%v got=%v", want, positional)
	}
	if want := []string{"--type", "debugging", "--json"}; !reflect.DeepEqual(flags, want) {
		t.Fatalf("unexpected flags: want=%v got=%v", want, flags)
	}

	positional, flags, err = splitFlagArgs([]string{"--type=feature", "-x", "q"}, spec)
	if err != nil {
		t.Fatalf("splitFlagArgs error: %v", err)
	}
	if !reflect.DeepEqual(flags, []string{"--type=feature"}) || !reflect.DeepEqual(positional, []string{"-x", "q"}) {
		t.Fatalf("unexpected split: flags=%v positional=%v", flags, positional)
	}

	if _, _, err := splitFlagArgs([]string{"q", "--type"}, spec); err == nil {
		t.Fatal("expected missing value error")
	}
}

func TestStringListAndCSV(t *testing.T) {
	var l stringList
	for _, v := range []string{"go test ./...", "  ", "make lint"} {
		if err := l.Set(v); err != nil {
			t.Fatal(err)
		}
	}
	if want := []string{"go test ./...", "make lint"}; !reflect.DeepEqual([]string(l), want) {
		t.Fatalf("unexpected list %v", l)
	}
	if got := splitCSV(" a, ,b ,c"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected csv split %v", got)
	}
	if got := splitCSV(""); got != nil {
		t.Fatalf("expected nil for empty csv, got %v", got)
	}
}
