package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file name. A trailing ".dist" is ignored,
// and unknown extensions are read as TOML.
func FormatOf(path string) Format {
	name := strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ".dist")
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json", ".jsonc":
		return FormatJSON
	default:
		return FormatTOML
	}
}

// FileSource holds options merged from one or more files. Option names are
// case-insensitive; section names are not.
type FileSource struct {
	sections map[string]map[string]string
	files    []string
}

// NewFileSource returns an empty source.
func NewFileSource() *FileSource {
	return &FileSource{sections: make(map[string]map[string]string)}
}

// LoadFiles reads paths in order into one FileSource.
func LoadFiles(paths ...string) (*FileSource, error) {
	fs := NewFileSource()
	for _, p := range paths {
		if err := fs.AddFile(p); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// AddFile merges a file over the options read so far.
func (fs *FileSource) AddFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := fs.AddBytes(FormatOf(path), b); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	fs.files = append(fs.files, path)
	return nil
}

// AddBytes merges an in-memory document over the options read so far.
func (fs *FileSource) AddBytes(format Format, data []byte) error {
	doc := map[string]any{}
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return err
		}
	case FormatJSON:
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown config format %q", format)
	}
	return fs.merge(doc)
}

func (fs *FileSource) merge(doc map[string]any) error {
	for key, v := range doc {
		table, ok := v.(map[string]any)
		if !ok {
			// Top-level scalars are shared defaults.
			s, err := scalar(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			fs.set(DefaultSection, key, s)
			continue
		}
		if _, ok := fs.sections[key]; !ok {
			fs.sections[key] = make(map[string]string)
		}
		for opt, ov := range table {
			s, err := scalar(ov)
			if err != nil {
				return fmt.Errorf("[%s] %s: %w", key, opt, err)
			}
			fs.set(key, opt, s)
		}
	}
	return nil
}

func (fs *FileSource) set(section, option, value string) {
	opts, ok := fs.sections[section]
	if !ok {
		opts = make(map[string]string)
		fs.sections[section] = opts
	}
	opts[strings.ToLower(option)] = value
}

// Get implements Source. Options missing from section fall back to DEFAULT.
func (fs *FileSource) Get(section, option string) (string, bool) {
	option = strings.ToLower(option)
	if v, ok := fs.sections[section][option]; ok {
		return v, true
	}
	v, ok := fs.sections[DefaultSection][option]
	return v, ok
}

// Sections lists the section names, sorted, without DEFAULT.
func (fs *FileSource) Sections() []string {
	out := make([]string, 0, len(fs.sections))
	for s := range fs.sections {
		if s != DefaultSection {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Files lists the files merged so far, in order.
func (fs *FileSource) Files() []string {
	return append([]string(nil), fs.files...)
}

func scalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case map[string]any:
		return "", fmt.Errorf("nested tables are not supported")
	case []any:
		return "", fmt.Errorf("lists are not supported")
	default:
		return fmt.Sprint(t), nil
	}
}

// CandidatePaths returns, in precedence order, the configuration files that
// exist under root. Later files override earlier ones.
func CandidatePaths(root string) []string {
	candidates := []string{
		filepath.Join(root, "etc", "socketship.toml.dist"),
		"/etc/socketship/socketship.toml",
		filepath.Join(root, "etc", "socketship.toml"),
		filepath.Join(root, "socketship.toml"),
	}
	var found []string
	for _, p := range candidates {
		if fileExists(p) {
			found = append(found, p)
		}
	}
	return found
}

// Load builds the standard chain: environment first, then paths merged in
// order.
func Load(paths ...string) (*Chain, error) {
	fs, err := LoadFiles(paths...)
	if err != nil {
		return nil, err
	}
	return NewChain(Env(), fs), nil
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
