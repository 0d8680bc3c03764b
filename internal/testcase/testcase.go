package testcase

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is one functional-test descriptor. It is loaded once per run and
// never mutated afterwards.
type Case struct {
	Name         string
	Path         string
	EnvVars      map[string]string
	ModelArgs    ModelArgs
	BeforeScript string
	AfterScript  string
	TestType     string
}

// ModelArg is a single training CLI flag. Bare flags (value true or null in
// the descriptor) are emitted without a value.
type ModelArg struct {
	Flag  string
	Value string
	Bare  bool
}

type ModelArgs []ModelArg

// Argv flattens the args into the CLI form passed to the training entry
// point. Placeholders like ${CHECKPOINT_SAVE_PATH} are still unresolved here.
func (m ModelArgs) Argv() []string {
	argv := make([]string, 0, len(m)*2)
	for _, a := range m {
		argv = append(argv, a.Flag)
		if !a.Bare {
			argv = append(argv, a.Value)
		}
	}
	return argv
}

type rawCase struct {
	EnvVars      yaml.Node `yaml:"ENV_VARS"`
	ModelArgs    yaml.Node `yaml:"MODEL_ARGS"`
	BeforeScript string    `yaml:"BEFORE_SCRIPT"`
	AfterScript  string    `yaml:"AFTER_SCRIPT"`
	TestType     string    `yaml:"TEST_TYPE"`
}

func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case %s: %w", path, err)
	}
	var raw rawCase
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing case %s: %w", path, err)
	}

	c := &Case{
		Name:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:         path,
		BeforeScript: raw.BeforeScript,
		AfterScript:  raw.AfterScript,
		TestType:     raw.TestType,
	}
	if c.TestType == "" {
		c.TestType = "regular"
	}

	c.EnvVars, err = decodeEnvVars(&raw.EnvVars)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", path, err)
	}
	c.ModelArgs, err = decodeModelArgs(&raw.ModelArgs, path)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", path, err)
	}
	return c, nil
}

func decodeEnvVars(node *yaml.Node) (map[string]string, error) {
	env := map[string]string{}
	if node.Kind == 0 || node.Tag == "!!null" {
		return env, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("ENV_VARS must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("ENV_VARS %s: value must be a scalar", key.Value)
		}
		env[key.Value] = val.Value
	}
	return env, nil
}

// decodeModelArgs walks the mapping node directly so source order is kept and
// duplicate keys are visible. The YAML format allows duplicates; the merge
// rule is last-value-wins, keeping the position of the first occurrence.
func decodeModelArgs(node *yaml.Node, path string) (ModelArgs, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("MODEL_ARGS must be a mapping")
	}

	var args ModelArgs
	index := map[string]int{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]
		if !strings.HasPrefix(key.Value, "--") {
			return nil, fmt.Errorf("MODEL_ARGS %q: flags must start with --", key.Value)
		}
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("MODEL_ARGS %s: value must be a scalar", key.Value)
		}

		arg := ModelArg{Flag: key.Value}
		switch {
		case val.Tag == "!!null":
			arg.Bare = true
		case val.Tag == "!!bool":
			if val.Value != "true" {
				// `--flag: false` drops the flag from the invocation.
				if j, dup := index[key.Value]; dup {
					args = append(args[:j], args[j+1:]...)
					delete(index, key.Value)
					reindex(args, index)
				}
				continue
			}
			arg.Bare = true
		default:
			arg.Value = val.Value
		}

		if j, dup := index[key.Value]; dup {
			log.Printf("warning: %s: duplicate flag %s (line %d), last value wins", path, key.Value, key.Line)
			args[j] = arg
			continue
		}
		index[key.Value] = len(args)
		args = append(args, arg)
	}
	return args, nil
}

func reindex(args ModelArgs, index map[string]int) {
	for k := range index {
		delete(index, k)
	}
	for i, a := range args {
		index[a.Flag] = i
	}
}
