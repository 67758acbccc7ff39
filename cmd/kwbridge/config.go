// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/engine"
	"github.com/kwbridge/kwbridge/internal/host"
	"github.com/kwbridge/kwbridge/internal/result"
)

// config is the YAML run configuration.
type config struct {
	WorkerID          string        `yaml:"worker_id"`
	LogPassingAsserts bool          `yaml:"log_passing_asserts"`
	HeartbeatInterval string        `yaml:"heartbeat_interval"`
	Suites            []suiteConfig `yaml:"suites"`
}

type suiteConfig struct {
	Path  string       `yaml:"path"`
	Tests []testConfig `yaml:"tests"`
}

type testConfig struct {
	Name     string          `yaml:"name"`
	Markers  []markerConfig  `yaml:"markers"`
	Keywords []keywordConfig `yaml:"keywords"`
}

type markerConfig struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type keywordConfig struct {
	Name     string          `yaml:"name"`
	Args     []string        `yaml:"args"`
	Children []keywordConfig `yaml:"children"`
}

func loadConfig(path string) (*config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	var cfg config
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return &cfg, nil
}

// heartbeat parses the configured heartbeat interval. Empty means disabled.
func (c *config) heartbeat() (time.Duration, error) {
	if c.HeartbeatInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.HeartbeatInterval)
	if err != nil {
		return 0, errors.Wrap(err, "bad heartbeat_interval")
	}
	return d, nil
}

// session builds the host session from the configured suites. Every
// configured test becomes a native item carrying its pre-parsed model.
func (c *config) session() *host.Session {
	s := &host.Session{WorkerID: c.WorkerID}
	for _, sc := range c.Suites {
		s.Units = append(s.Units, sc.Path)
		for _, tc := range sc.Tests {
			var markers []host.Marker
			for _, mc := range tc.Markers {
				markers = append(markers, host.Marker{Name: mc.Name, Value: mc.Value})
			}
			s.Items = append(s.Items, &host.Item{
				Name:    tc.Name,
				Unit:    sc.Path,
				Markers: markers,
				Origin:  result.OriginNative,
				Native: &engine.NativeTest{
					Name:      tc.Name,
					SuitePath: sc.Path,
					Keywords:  nativeKeywords(tc.Keywords),
				},
			})
		}
	}
	return s
}

func nativeKeywords(kcs []keywordConfig) []*engine.NativeKeyword {
	var out []*engine.NativeKeyword
	for _, kc := range kcs {
		out = append(out, &engine.NativeKeyword{
			Name:     kc.Name,
			Args:     kc.Args,
			Children: nativeKeywords(kc.Children),
		})
	}
	return out
}
