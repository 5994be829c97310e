package copier

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/opentriage/forage/internal/runner"
	"github.com/opentriage/forage/internal/tools"
)

func TestIsSystemFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"C:/Windows/System32/config/SAM", true},
		{"C:/Users/alice/NTUSER.DAT", true},
		{"C:/Users/alice/AppData/Local/Microsoft/Windows/UsrClass.dat", true},
		{"C:/winevt/Logs/Security.evtx", true},
		{"C:/$MFT", true},
		{"C:/Program Files/Vendor/app.exe", true},
		{"C:/Users/alice/Documents/report.docx", false},
		{"C:/Temp/notes.txt", false},
	}
	for _, tt := range tests {
		if got := isSystemFile(tt.path); got != tt.want {
			t.Errorf("isSystemFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"C:/Users/alice/~lock.docx", true},
		{"C:/ProgramData/App/app.log.3", true},
		{"C:/Temp/scratch.tmp", true},
		{"C:/Temp/scratch.TMP", true},
		{"C:/Temp/build.temp", true},
		{"C:/ProgramData/App/app.log", false},
		{"C:/Temp/data.tmpl", false},
		{"C:/Windows/System32/config/SAM", false},
	}
	for _, tt := range tests {
		if got := isTransient(tt.path); got != tt.want {
			t.Errorf("isTransient(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsFatalSizeError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("The filename or extension is too long."), true},
		{errors.New("file is too large for the destination file system"), true},
		{errors.New("path exceeds the limit"), true},
		{errors.New("Access is denied."), false},
		{errors.New("sharing violation"), false},
	}
	for _, tt := range tests {
		if got := isFatalSizeError(tt.err); got != tt.want {
			t.Errorf("isFatalSizeError(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestOrderForFallback(t *testing.T) {
	descs := []tools.Descriptor{
		{Name: "a"},
		{Name: "b", RawCapable: true},
		{Name: "c"},
		{Name: "d", RawCapable: true},
	}

	names := func(ds []tools.Descriptor) []string {
		out := make([]string, len(ds))
		for i, d := range ds {
			out[i] = d.Name
		}
		return out
	}

	plain := orderForFallback(descs, "C:/Users/alice/Documents/report.docx")
	if got, want := names(plain), []string{"a", "b", "c", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("non-system order = %v, want %v", got, want)
	}

	system := orderForFallback(descs, "C:/Windows/System32/config/SYSTEM")
	if got, want := names(system), []string{"b", "d", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("system order = %v, want %v", got, want)
	}
}

// writingTool is a fallback tool that succeeds by writing the destination.
func writingTool(fs afero.Fs, name string, raw bool, calls *[]string) tools.Descriptor {
	return tools.Descriptor{
		Name:       name,
		Kind:       tools.KindFunction,
		RawCapable: raw,
		Copy: func(ctx context.Context, src, dest string) error {
			*calls = append(*calls, name)
			return afero.WriteFile(fs, dest, []byte("via "+name), 0o644)
		},
	}
}

// failingTool is a fallback tool that always returns msg as its error.
func failingTool(name string, raw bool, msg string, calls *[]string) tools.Descriptor {
	return tools.Descriptor{
		Name:       name,
		Kind:       tools.KindFunction,
		RawCapable: raw,
		Copy: func(ctx context.Context, src, dest string) error {
			*calls = append(*calls, name)
			return errors.New(msg)
		},
	}
}

func TestFallbackFirstSuccessStopsChain(t *testing.T) {
	mem := afero.NewMemMapFs()
	seed(t, mem, map[string]string{"C:/Users/alice/notes.sqlite": "data"})
	fs := lockFs(mem, "C:/Users/alice/notes.sqlite")

	var calls []string
	descs := []tools.Descriptor{
		writingTool(fs, "t1", false, &calls),
		writingTool(fs, "t2", false, &calls),
	}
	c := New(fs, noRunner(), discardLogger())

	res := c.Copy(context.Background(), `C:\Users\alice\notes.sqlite`, `C:\out`, descs)

	if !res.Success || res.FilesCollected != 1 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Files[0].Tool != "t1" {
		t.Errorf("tool = %s, want t1", res.Files[0].Tool)
	}
	if !reflect.DeepEqual(calls, []string{"t1"}) {
		t.Errorf("calls = %v, want [t1]", calls)
	}
	got, err := afero.ReadFile(fs, "C:/out/notes.sqlite")
	if err != nil || string(got) != "via t1" {
		t.Errorf("dest content = %q, err = %v", got, err)
	}
}

func TestFallbackRawCapablePreferredForSystemFiles(t *testing.T) {
	mem := afero.NewMemMapFs()
	seed(t, mem, map[string]string{"C:/Windows/System32/config/SAM": "hive"})
	fs := lockFs(mem, "C:/Windows/System32/config/SAM")

	var calls []string
	descs := []tools.Descriptor{
		failingTool("cautious", false, "Access is denied.", &calls),
		writingTool(fs, "rawer", true, &calls),
	}
	c := New(fs, noRunner(), discardLogger())

	res := c.Copy(context.Background(), `C:\Windows\System32\config\SAM`, `C:\out`, descs)

	if !res.Success || res.FilesCollected != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Files[0].Tool != "rawer" {
		t.Errorf("tool = %s, want rawer", res.Files[0].Tool)
	}
	if !reflect.DeepEqual(calls, []string{"rawer"}) {
		t.Errorf("calls = %v, want [rawer]; the raw-capable tool should run first and win", calls)
	}
}

func TestFallbackSizeErrorStopsChain(t *testing.T) {
	mem := afero.NewMemMapFs()
	seed(t, mem, map[string]string{"C:/Users/alice/big.bin": "x"})
	fs := lockFs(mem, "C:/Users/alice/big.bin")

	var calls []string
	descs := []tools.Descriptor{
		failingTool("t1", false, "The filename or extension is too long.", &calls),
		writingTool(fs, "t2", false, &calls),
	}
	c := New(fs, noRunner(), discardLogger())

	res := c.Copy(context.Background(), `C:\Users\alice\big.bin`, `C:\out`, descs)

	if res.Success || len(res.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Errors[0], "size incompatibility") || !strings.Contains(res.Errors[0], "t1") {
		t.Errorf("error = %q", res.Errors[0])
	}
	if !reflect.DeepEqual(calls, []string{"t1"}) {
		t.Errorf("calls = %v; the chain must stop after a size error", calls)
	}
}

func TestFallbackAllToolsFailCombinedError(t *testing.T) {
	mem := afero.NewMemMapFs()
	seed(t, mem, map[string]string{"C:/Users/alice/locked.sqlite": "x"})
	fs := lockFs(mem, "C:/Users/alice/locked.sqlite")

	var calls []string
	descs := []tools.Descriptor{
		failingTool("t1", false, "copy failed (1)", &calls),
		failingTool("t2", false, "copy failed (2)", &calls),
	}
	c := New(fs, noRunner(), discardLogger())

	res := c.Copy(context.Background(), `C:\Users\alice\locked.sqlite`, `C:\out`, descs)

	if res.Success || res.FilesCollected != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want one combined entry", res.Errors)
	}
	for _, frag := range []string{"direct:", "t1:", "t2:"} {
		if !strings.Contains(res.Errors[0], frag) {
			t.Errorf("error %q missing %q", res.Errors[0], frag)
		}
	}
	if !reflect.DeepEqual(calls, []string{"t1", "t2"}) {
		t.Errorf("calls = %v, want [t1 t2]", calls)
	}
}

func TestFallbackWithoutTools(t *testing.T) {
	mem := afero.NewMemMapFs()
	seed(t, mem, map[string]string{"C:/Users/alice/locked.sqlite": "x"})
	fs := lockFs(mem, "C:/Users/alice/locked.sqlite")
	c := New(fs, noRunner(), discardLogger())

	res := c.Copy(context.Background(), `C:\Users\alice\locked.sqlite`, `C:\out`, nil)

	if res.Success || len(res.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Errors[0], "no fallback tools available") {
		t.Errorf("error = %q", res.Errors[0])
	}
}

func TestFallbackExecutableTool(t *testing.T) {
	mem := afero.NewMemMapFs()
	seed(t, mem, map[string]string{"C:/Users/alice/locked.sqlite": "data"})
	fs := lockFs(mem, "C:/Users/alice/locked.sqlite")

	var gotName string
	var gotArgs []string
	run := runner.Func(func(ctx context.Context, name string, args ...string) (runner.Output, error) {
		gotName = name
		gotArgs = args
		if err := afero.WriteFile(fs, args[1], []byte("tool output"), 0o644); err != nil {
			return runner.Output{}, err
		}
		return runner.Output{ExitCode: 1, Combined: []byte("1 file copied")}, nil
	})

	desc := tools.Descriptor{
		Name:      "fakecopy",
		Kind:      tools.KindExecutable,
		Path:      `C:\tools\fakecopy.exe`,
		Args:      func(src, dest string) []string { return []string{src, dest} },
		Succeeded: func(code int) bool { return code < 8 },
	}
	c := New(fs, run, discardLogger())

	res := c.Copy(context.Background(), `C:\Users\alice\locked.sqlite`, `C:\out`, []tools.Descriptor{desc})

	if !res.Success || res.FilesCollected != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Files[0].Tool != "fakecopy" {
		t.Errorf("tool = %s", res.Files[0].Tool)
	}
	if gotName != `C:\tools\fakecopy.exe` {
		t.Errorf("ran %q", gotName)
	}
	want := []string{"C:/Users/alice/locked.sqlite", "C:/out/locked.sqlite"}
	if !reflect.DeepEqual(gotArgs, want) {
		t.Errorf("args = %v, want %v", gotArgs, want)
	}
}

func TestFallbackExecutableExitFailure(t *testing.T) {
	mem := afero.NewMemMapFs()
	seed(t, mem, map[string]string{"C:/Users/alice/locked.sqlite": "data"})
	fs := lockFs(mem, "C:/Users/alice/locked.sqlite")

	run := runner.Func(func(ctx context.Context, name string, args ...string) (runner.Output, error) {
		return runner.Output{ExitCode: 16, Combined: []byte("ERROR 32: sharing violation")}, nil
	})
	desc := tools.Descriptor{
		Name:      "fakecopy",
		Kind:      tools.KindExecutable,
		Path:      `C:\tools\fakecopy.exe`,
		Args:      func(src, dest string) []string { return []string{src, dest} },
		Succeeded: func(code int) bool { return code < 8 },
	}
	c := New(fs, run, discardLogger())

	res := c.Copy(context.Background(), `C:\Users\alice\locked.sqlite`, `C:\out`, []tools.Descriptor{desc})

	if res.Success || len(res.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Errors[0], "exit code 16") || !strings.Contains(res.Errors[0], "sharing violation") {
		t.Errorf("error = %q", res.Errors[0])
	}
}

func TestFallbackRequiresDestination(t *testing.T) {
	mem := afero.NewMemMapFs()
	seed(t, mem, map[string]string{"C:/Users/alice/locked.sqlite": "data"})
	fs := lockFs(mem, "C:/Users/alice/locked.sqlite")

	var calls []string
	// Claims success but never writes the destination.
	desc := tools.Descriptor{
		Name: "liar",
		Kind: tools.KindFunction,
		Copy: func(ctx context.Context, src, dest string) error {
			calls = append(calls, "liar")
			return nil
		},
	}
	c := New(fs, noRunner(), discardLogger())

	res := c.Copy(context.Background(), `C:\Users\alice\locked.sqlite`, `C:\out`, []tools.Descriptor{desc})

	if res.Success || res.FilesCollected != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "was not created") {
		t.Errorf("errors = %v", res.Errors)
	}
	if !reflect.DeepEqual(calls, []string{"liar"}) {
		t.Errorf("calls = %v", calls)
	}
}
