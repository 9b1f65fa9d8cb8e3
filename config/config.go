// SPDX-License-Identifier: GPL-2.0-or-later

// Package config reads the host configuration file.
package config

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"govbsp/cvar"
)

// File is the YAML configuration:
//
//	basedir: /games/hl2
//	game: mod
//	logfile: govbsp.log
//	loglevel: debug
//	cvars:
//	  mod_dynamicunloadtime: 30
//	exec:
//	  - map_load maps/e1m1.bsp
type File struct {
	BaseDir  string            `yaml:"basedir"`
	Game     string            `yaml:"game"`
	LogFile  string            `yaml:"logfile"`
	LogLevel string            `yaml:"loglevel"`
	Manifest string            `yaml:"manifest"`
	Cvars    map[string]string `yaml:"cvars"`
	Exec     []string          `yaml:"exec"`
}

func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return f, nil
}

// Parse decodes a configuration. Unknown keys are an error.
func Parse(raw []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "config")
	}
	return &f, nil
}

// Apply sets the configured variables in name order. Names not registered
// yet become user variables that registration picks up later.
func (f *File) Apply(l *cvar.List) {
	names := make([]string, 0, len(f.Cvars))
	for n := range f.Cvars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		l.Set(n, f.Cvars[n])
	}
}
