// Package seed loads arena content (models, prompts and their ASCII outputs)
// from a YAML file into a store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"ascii-arena/internal/models"
	"ascii-arena/internal/store"

	"gopkg.in/yaml.v3"
)

// File is the on-disk seed format. Outputs are keyed by model name.
//
//	models:
//	  - name: gpt-4o
//	    config: temperature=0.7
//	    metadata: {provider: openai}
//	prompts:
//	  - text: a lighthouse
//	    outputs:
//	      gpt-4o: |
//	        |^|
type File struct {
	Models  []ModelSpec  `yaml:"models"`
	Prompts []PromptSpec `yaml:"prompts"`
}

type ModelSpec struct {
	Name     string                 `yaml:"name"`
	Config   string                 `yaml:"config"`
	Metadata map[string]interface{} `yaml:"metadata"`
}

type PromptSpec struct {
	Text    string            `yaml:"text"`
	Outputs map[string]string `yaml:"outputs"`
}

// Summary counts what Apply created.
type Summary struct {
	Models  int
	Prompts int
	Outputs int
}

// LoadFile reads and validates a seed file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names are unique and every output names a declared model.
func (f *File) Validate() error {
	names := make(map[string]bool, len(f.Models))
	for i, m := range f.Models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if names[name] {
			return fmt.Errorf("models[%d]: duplicate model %q", i, name)
		}
		names[name] = true
	}
	for i, p := range f.Prompts {
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("prompts[%d]: text is required", i)
		}
		for model, content := range p.Outputs {
			if !names[model] {
				return fmt.Errorf("prompts[%d]: output for undeclared model %q", i, model)
			}
			if content == "" {
				return fmt.Errorf("prompts[%d]: empty output for %q", i, model)
			}
		}
	}
	if len(f.Models) == 0 && len(f.Prompts) == 0 {
		return errors.New("seed file is empty")
	}
	return nil
}

// Apply creates everything in f. It is not transactional; a failure part way
// leaves earlier rows in place.
func Apply(ctx context.Context, st store.Store, f *File) (Summary, error) {
	var sum Summary
	ids := make(map[string]string, len(f.Models))

	for _, ms := range f.Models {
		m := &models.Model{
			ModelName:   strings.TrimSpace(ms.Name),
			ModelConfig: ms.Config,
			Metadata:    ms.Metadata,
		}
		if err := st.CreateModel(ctx, m); err != nil {
			return sum, fmt.Errorf("create model %q: %w", m.ModelName, err)
		}
		ids[m.ModelName] = m.ID
		sum.Models++
	}

	for _, ps := range f.Prompts {
		p := &models.Prompt{Text: strings.TrimSpace(ps.Text)}
		if err := st.CreatePrompt(ctx, p); err != nil {
			return sum, fmt.Errorf("create prompt %q: %w", p.Text, err)
		}
		sum.Prompts++

		for name, content := range ps.Outputs {
			o := &models.AsciiOutput{PromptID: p.ID, ModelID: ids[name], Content: content}
			if err := st.CreateOutput(ctx, o); err != nil {
				return sum, fmt.Errorf("create output %q/%q: %w", p.Text, name, err)
			}
			sum.Outputs++
		}
	}
	return sum, nil
}
