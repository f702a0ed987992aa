// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
)

const maxFileSize = 1 << 20

//go:embed templates.yaml
var defaultTemplatesYAML []byte

var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrInvalidTemplate = errors.New("invalid template")
)

// Template is a reusable slot layout for new groups.
type Template struct {
	Key          string   `yaml:"key"`
	Name         string   `yaml:"name"`
	ActivityType string   `yaml:"activity_type"`
	Roles        []string `yaml:"roles"`
}

type file struct {
	Templates []Template `yaml:"templates"`
}

// Registry holds templates by lower-cased key. Read-only after Load.
type Registry struct {
	templates map[string]Template
}

func (r *Registry) Get(key string) (Template, error) {
	t, ok := r.templates[strings.ToLower(key)]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, key)
	}
	return t, nil
}

// Keys returns the template keys in lexical order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.templates))
	for k := range r.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Request builds a create request from the template. An empty name falls
// back to the template name.
func (t Template) Request(name string) httptypes.CreateGroupRequest {
	if name == "" {
		name = t.Name
	}

	roles := make([]string, len(t.Roles))
	copy(roles, t.Roles)

	return httptypes.CreateGroupRequest{
		Name:         name,
		ActivityType: t.ActivityType,
		Template:     t.Key,
		Roles:        roles,
	}
}

// Load returns the built-in templates, overridden and extended by the
// templates in path when it is not empty.
func Load(path string) (*Registry, error) {
	r := &Registry{templates: make(map[string]Template)}

	if err := r.parse(defaultTemplatesYAML); err != nil {
		return nil, fmt.Errorf("failed to parse built-in templates: %w", err)
	}

	if path == "" {
		return r, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("templates file %s exceeds %d bytes", path, maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	if err := r.parse(data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return r, nil
}

func (r *Registry) parse(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}

	for i, t := range f.Templates {
		t.Key = strings.ToLower(strings.TrimSpace(t.Key))
		if t.Key == "" || t.Name == "" || len(t.Roles) == 0 {
			return fmt.Errorf("%w: entry %d needs a key, a name and roles", ErrInvalidTemplate, i)
		}
		for _, role := range t.Roles {
			if strings.TrimSpace(role) == "" {
				return fmt.Errorf("%w: %s has an empty role", ErrInvalidTemplate, t.Key)
			}
		}
		r.templates[t.Key] = t
	}
	return nil
}
