package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

var ErrParam = errors.New("invalid parameter")

// Params are the values given to the top-level parameters of a stylesheet.
type Params map[string]string

// ParseParams reads parameters written as name=value.
func ParseParams(list []string) (Params, error) {
	ps := make(Params)
	for _, str := range list {
		if err := ps.Set(str); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// Set adds a name=value parameter. It makes Params usable as a flag.Value.
func (p Params) Set(str string) error {
	name, value, ok := strings.Cut(str, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("%s: %w: name=value expected", str, ErrParam)
	}
	p[name] = value
	return nil
}

func (p Params) String() string {
	var list []string
	for k, v := range p {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return strings.Join(list, ",")
}

// Merge copies the values of other into p, replacing existing ones.
func (p Params) Merge(other Params) {
	for k, v := range other {
		p[k] = v
	}
}

// LoadParams reads a parameter file. The format, yaml or toml, comes from
// the extension of file. Only scalar values are accepted.
func LoadParams(file string) (Params, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &values)
	case ".toml":
		err = toml.Unmarshal(data, &values)
	default:
		return nil, fmt.Errorf("%s: %w: unsupported format %q", file, ErrParam, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	ps := make(Params)
	for k, v := range values {
		str, err := scalar(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", file, k, err)
		}
		ps[k] = str
	}
	return ps, nil
}

func scalar(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %T is not a scalar", ErrParam, v)
	}
}
