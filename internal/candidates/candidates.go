// Package candidates reads the task definitions proposed by the datasource
// guessing utility so they can be created in bulk.
package candidates

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/me/schedctl/pkg/model"
)

// file accepts either a bare list or a document with a "candidates" key.
type file struct {
	Candidates []model.TaskSpec `yaml:"candidates"`
}

// Load reads a YAML or JSON candidates file.
func Load(path string) ([]model.TaskSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candidates: %w", err)
	}
	defer f.Close()
	specs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// Parse decodes candidate definitions, applies the scheduling defaults and
// validates every entry. All invalid entries are reported, each with its
// 1-based position.
func Parse(r io.Reader) ([]model.TaskSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var specs []model.TaskSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		var doc file
		if derr := yaml.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("parse candidates: %w", err)
		}
		specs = doc.Candidates
	}

	var errs []error
	for i := range specs {
		specs[i] = specs[i].WithDefaults()
		if err := specs[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("candidate %d: %w", i+1, err))
		}
	}
	if len(errs) > 0 {
		return specs, errors.Join(errs...)
	}
	return specs, nil
}
