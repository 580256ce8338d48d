package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func noEnv(string) (string, bool) { return "", false }

func TestCandidatePaths_AndMerge(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "etc", "socketship.toml.dist")
	local := filepath.Join(root, "etc", "socketship.toml")
	writeFile(t, dist, "[dist_config]\noption = \"foobar\"\n\n[to_override]\nover_option = \"dist_version\"\n")
	writeFile(t, local, "[to_override]\nover_option = \"local_version\"\n")

	paths := CandidatePaths(root)
	// /etc/socketship/socketship.toml is not expected to exist on a test host.
	if !reflect.DeepEqual(paths, []string{dist, local}) {
		t.Fatalf("CandidatePaths = %v, want [%s %s]", paths, dist, local)
	}

	fs, err := LoadFiles(paths...)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	chain := NewChain(EnvFunc(noEnv), fs)

	want := map[string]map[string]string{
		"dist_config": {"option": "foobar"},
		"to_override": {"over_option": "local_version"},
	}
	for section, opts := range want {
		for option, value := range opts {
			got, err := chain.Lookup(section, option)
			if err != nil {
				t.Fatalf("Lookup(%s, %s): %v", section, option, err)
			}
			if got != value {
				t.Errorf("Lookup(%s, %s) = %q, want %q", section, option, got, value)
			}
		}
	}
	if !reflect.DeepEqual(fs.Sections(), []string{"dist_config", "to_override"}) {
		t.Errorf("Sections = %v", fs.Sections())
	}
}

func TestChain_EnvironmentWins(t *testing.T) {
	fs := NewFileSource()
	if err := fs.AddBytes(FormatTOML, []byte("[output_socketlog]\naddress = \"file:1\"\ntimeout = 5\n")); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OUTPUT_SOCKETLOG_ADDRESS", "env:2")

	chain := NewChain(Env(), fs)
	got, err := chain.Lookup("output_socketlog", "address")
	if err != nil || got != "env:2" {
		t.Errorf("address = %q, %v; want env:2", got, err)
	}
	got, err = chain.Lookup("output_socketlog", "timeout")
	if err != nil || got != "5" {
		t.Errorf("timeout = %q, %v; want 5", got, err)
	}
}

func TestChain_NotFound(t *testing.T) {
	chain := NewChain(EnvFunc(noEnv), NewFileSource())
	_, err := chain.Lookup("output_socketlog", "address")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestChain_Interpolation(t *testing.T) {
	fs := NewFileSource()
	doc := `
port = 3456

[collector]
host = "logs.internal"

[output_socketlog]
address = "${collector:host}:${port}"
label = "cost $$5"
nested = "${address}/x"
missing = "${nope}"
bad = "a $ b"
loop_a = "${loop_b}"
loop_b = "${loop_a}"
`
	if err := fs.AddBytes(FormatTOML, []byte(doc)); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"COLLECTOR_HOST": "override.internal"}
	chain := NewChain(EnvFunc(func(k string) (string, bool) { v, ok := env[k]; return v, ok }), fs)

	tests := []struct {
		option  string
		want    string
		wantErr bool
	}{
		{option: "address", want: "override.internal:3456"},
		{option: "label", want: "cost $5"},
		{option: "nested", want: "override.internal:3456/x"},
		{option: "missing", wantErr: true},
		{option: "bad", wantErr: true},
		{option: "loop_a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.option, func(t *testing.T) {
			got, err := chain.Lookup("output_socketlog", tt.option)
			if tt.wantErr {
				var ie *InterpolationError
				if !errors.As(err, &ie) {
					t.Fatalf("err = %v, want *InterpolationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if got != tt.want {
				t.Errorf("Lookup = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChain_EnvValuesAreVerbatim(t *testing.T) {
	chain := NewChain(EnvFunc(func(k string) (string, bool) {
		if k == "OUTPUT_SOCKETLOG_ADDRESS" {
			return "${not}:1", true
		}
		return "", false
	}))
	got, err := chain.Lookup("output_socketlog", "address")
	if err != nil || got != "${not}:1" {
		t.Errorf("Lookup = %q, %v", got, err)
	}
}

func TestChain_EnvValuesStayVerbatimWhenReferenced(t *testing.T) {
	env := EnvFunc(func(k string) (string, bool) {
		if k == "COLLECTOR_HOST" {
			return "h$st${x}", true
		}
		return "", false
	})
	fs := NewFileSource()
	doc := "[collector]\nhost = \"file\"\n[output_socketlog]\naddress = \"${collector:host}:3456\"\n"
	if err := fs.AddBytes(FormatTOML, []byte(doc)); err != nil {
		t.Fatal(err)
	}
	chain := NewChain(env, fs)

	direct, err := chain.Lookup("collector", "host")
	if err != nil || direct != "h$st${x}" {
		t.Fatalf("direct Lookup = %q, %v", direct, err)
	}
	got, err := chain.Lookup("output_socketlog", "address")
	if err != nil || got != "h$st${x}:3456" {
		t.Errorf("referenced Lookup = %q, %v; want h$st${x}:3456", got, err)
	}
}

func TestFileSource_Formats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.toml":      "[s]\nfrom_toml = 1\nshared = \"toml\"\n",
		"b.yaml":      "s:\n  from_yaml: true\n  shared: yaml\n",
		"c.jsonc":     "{\n  // comment\n  \"s\": {\"from_json\": 2.5, \"Shared\": \"json\",},\n}\n",
		"d.toml.dist": "[s]\nfrom_dist = \"dist\"\n",
	}
	var paths []string
	for _, name := range []string{"a.toml", "b.yaml", "c.jsonc", "d.toml.dist"} {
		p := filepath.Join(dir, name)
		writeFile(t, p, files[name])
		paths = append(paths, p)
	}

	fs, err := LoadFiles(paths...)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	want := map[string]string{
		"from_toml": "1",
		"from_yaml": "true",
		"from_json": "2.5",
		"from_dist": "dist",
		"shared":    "json",
		"SHARED":    "json",
	}
	for opt, w := range want {
		if got, ok := fs.Get("s", opt); !ok || got != w {
			t.Errorf("Get(s, %s) = %q, %v; want %q", opt, got, ok, w)
		}
	}
	if len(fs.Files()) != 4 {
		t.Errorf("Files = %v", fs.Files())
	}
}

func TestFileSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		doc    string
	}{
		{"bad toml", FormatTOML, "[s\n"},
		{"nested table", FormatTOML, "[s.t.u]\nx = 1\n"},
		{"list", FormatYAML, "s:\n  x: [1, 2]\n"},
		{"unknown format", Format("ini"), "[s]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewFileSource().AddBytes(tt.format, []byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadFiles(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileSource_DefaultSection(t *testing.T) {
	fs := NewFileSource()
	if err := fs.AddBytes(FormatYAML, []byte("timeout: 7\nDEFAULT:\n  retries: 3\nout:\n  address: a:1\n")); err != nil {
		t.Fatal(err)
	}
	for opt, want := range map[string]string{"timeout": "7", "retries": "3", "address": "a:1"} {
		if got, ok := fs.Get("out", opt); !ok || got != want {
			t.Errorf("Get(out, %s) = %q, %v; want %q", opt, got, ok, want)
		}
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"etc/socketship.toml.dist": FormatTOML,
		"socketship.yml":           FormatYAML,
		"x.YAML":                   FormatYAML,
		"x.json":                   FormatJSON,
		"x.jsonc.dist":             FormatJSON,
		"x.cfg":                    FormatTOML,
	}
	for path, want := range tests {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%s) = %s, want %s", path, got, want)
		}
	}
}

func TestTypedValues(t *testing.T) {
	fs := NewFileSource()
	doc := "[s]\ntimeout = 2.5\nwait = \"1500ms\"\nretries = 3\nbad_int = \"x\"\nbad_dur = \"soon\"\nneg = -1\n"
	if err := fs.AddBytes(FormatTOML, []byte(doc)); err != nil {
		t.Fatal(err)
	}
	p := NewChain(fs)

	if d, err := Duration(p, "s", "timeout", time.Second); err != nil || d != 2500*time.Millisecond {
		t.Errorf("timeout = %v, %v", d, err)
	}
	if d, err := Duration(p, "s", "wait", time.Second); err != nil || d != 1500*time.Millisecond {
		t.Errorf("wait = %v, %v", d, err)
	}
	if d, err := Duration(p, "s", "absent", 5*time.Second); err != nil || d != 5*time.Second {
		t.Errorf("absent = %v, %v", d, err)
	}
	if _, err := Duration(p, "s", "bad_dur", 0); err == nil {
		t.Error("bad_dur: expected error")
	}
	if _, err := Duration(p, "s", "neg", 0); err == nil {
		t.Error("neg: expected error")
	}
	if i, err := Int(p, "s", "retries", 1); err != nil || i != 3 {
		t.Errorf("retries = %d, %v", i, err)
	}
	if i, err := Int(p, "s", "absent", 1); err != nil || i != 1 {
		t.Errorf("absent int = %d, %v", i, err)
	}
	if _, err := Int(p, "s", "bad_int", 1); err == nil {
		t.Error("bad_int: expected error")
	}
	if s, err := String(p, "s", "absent", "dflt"); err != nil || s != "dflt" {
		t.Errorf("String absent = %q, %v", s, err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"5", 5 * time.Second, false},
		{" 0.25 ", 250 * time.Millisecond, false},
		{"2m", 2 * time.Minute, false},
		{"0", 0, false},
		{"9223372036", 9223372036 * time.Second, false},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"-Inf", 0, true},
		{"1e30", 0, true},
		{"9223372037", 0, true},
		{"-1", 0, true},
		{"-1s", 0, true},
		{"later", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMapSource_OverridesEverything(t *testing.T) {
	flags := MapSource{}
	flags.Set("output_socketlog", "address", "flag:3")
	chain := NewChain(flags, EnvFunc(func(string) (string, bool) { return "env:2", true }))

	got, err := chain.Lookup("output_socketlog", "address")
	if err != nil || got != "flag:3" {
		t.Errorf("Lookup = %q, %v; want flag:3", got, err)
	}
	got, err = chain.Lookup("output_socketlog", "timeout")
	if err != nil || got != "env:2" {
		t.Errorf("unset flag should fall through, got %q, %v", got, err)
	}
}

func TestChain_Prepend(t *testing.T) {
	base := MapSource{}
	base.Set("s", "a", "base")
	base.Set("s", "b", "base")
	chain := NewChain(base)

	over := MapSource{}
	over.Set("s", "a", "over")
	merged := chain.Prepend(over)

	if got, _ := merged.Lookup("s", "a"); got != "over" {
		t.Errorf("a = %q, want over", got)
	}
	if got, _ := merged.Lookup("s", "b"); got != "base" {
		t.Errorf("b = %q, want base", got)
	}
	if got, _ := chain.Lookup("s", "a"); got != "base" {
		t.Errorf("original chain changed: a = %q", got)
	}
}
