package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Profile renders one environment's config files from base files plus
// overrides.
type Profile struct {
	OutputDir string                    `yaml:"outputDir"`
	Auth      AuthProfile               `yaml:"auth"`
	Services  map[string]ServiceProfile `yaml:"services"`
}

// AuthProfile is copied into the auth section of every service that sets
// sharedAuth, so the service and the CLI agree on the token secret.
type AuthProfile struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type ServiceProfile struct {
	Base       string                 `yaml:"base"`
	Output     string                 `yaml:"output"`
	SharedAuth bool                   `yaml:"sharedAuth"`
	Overrides  map[string]interface{} `yaml:"overrides"`
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile failed: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile failed: %w", err)
	}
	if len(profile.Services) == 0 {
		return nil, errors.New("profile has no services")
	}
	return &profile, nil
}

// generate writes every service config and returns the written paths in
// service name order.
func generate(profile *Profile, profileDir string) ([]string, error) {
	if profile.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	outputDir := profile.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(profileDir, outputDir)
	}

	names := make([]string, 0, len(profile.Services))
	for name := range profile.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		svc := profile.Services[name]
		if svc.Base == "" {
			return nil, fmt.Errorf("service %q missing base config", name)
		}
		if !filepath.IsAbs(svc.Base) {
			svc.Base = filepath.Join(profileDir, svc.Base)
		}

		cfg, err := loadYAML(svc.Base)
		if err != nil {
			return nil, fmt.Errorf("load base config for %q failed: %w", name, err)
		}
		cfg = normalizeValue(cfg)
		if len(svc.Overrides) > 0 {
			cfg, err = mergeMap(cfg, normalizeValue(svc.Overrides))
			if err != nil {
				return nil, fmt.Errorf("merge overrides for %q failed: %w", name, err)
			}
		}
		if svc.SharedAuth {
			cfg, err = applySharedAuth(profile.Auth, cfg)
			if err != nil {
				return nil, fmt.Errorf("apply shared auth for %q failed: %w", name, err)
			}
		}

		out := svc.Output
		if out == "" {
			out = filepath.Base(svc.Base)
		}
		if !filepath.IsAbs(out) {
			out = filepath.Join(outputDir, out)
		}
		if err := writeYAML(out, cfg); err != nil {
			return nil, fmt.Errorf("write config for %q failed: %w", name, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func loadYAML(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml failed: %w", err)
	}
	var value interface{}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse yaml failed: %w", err)
	}
	return value, nil
}

func writeYAML(path string, value interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal yaml failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write yaml failed: %w", err)
	}
	return nil
}

func normalizeValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = normalizeValue(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[fmt.Sprintf("%v", k)] = normalizeValue(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalizeValue(item))
		}
		return out
	default:
		return value
	}
}

// mergeMap overlays override onto base. Nested maps merge; everything else
// is replaced.
func mergeMap(base, override interface{}) (interface{}, error) {
	baseMap, ok := base.(map[string]interface{})
	if !ok {
		return nil, errors.New("base config is not a map")
	}
	overrideMap, ok := override.(map[string]interface{})
	if !ok {
		return nil, errors.New("override config is not a map")
	}

	merged := make(map[string]interface{}, len(baseMap))
	for k, v := range baseMap {
		merged[k] = v
	}
	for key, overrideValue := range overrideMap {
		baseChild, baseIsMap := merged[key].(map[string]interface{})
		overrideChild, overrideIsMap := overrideValue.(map[string]interface{})
		if baseIsMap && overrideIsMap {
			combined, err := mergeMap(baseChild, overrideChild)
			if err != nil {
				return nil, err
			}
			merged[key] = combined
			continue
		}
		merged[key] = overrideValue
	}
	return merged, nil
}

func applySharedAuth(auth AuthProfile, cfg interface{}) (interface{}, error) {
	if auth.Secret == "" && auth.Issuer == "" {
		return cfg, nil
	}
	root, ok := cfg.(map[string]interface{})
	if !ok {
		return nil, errors.New("service config is not a map")
	}
	section, ok := root["auth"].(map[string]interface{})
	if !ok {
		section = map[string]interface{}{}
		root["auth"] = section
	}
	if auth.Secret != "" {
		section["secret"] = auth.Secret
	}
	if auth.Issuer != "" {
		section["issuer"] = auth.Issuer
	}
	return root, nil
}
