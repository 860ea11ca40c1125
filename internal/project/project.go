// Package project describes a contract project on disk and loads its
// configuration file.
package project

import (
	"github.com/hupe1980/artifactwatch/internal/artifact"
)

// Config holds the parts of a project configuration the watcher needs.
// Both paths are absolute once loaded.
type Config struct {
	BuildDirectory          string `mapstructure:"build_directory" json:"buildDirectory"`
	ContractsBuildDirectory string `mapstructure:"contracts_build_directory" json:"contractsBuildDirectory"`
}

// Descriptor is a loaded project: where its configuration lives, what it
// says, and the artifacts currently built.
type Descriptor struct {
	ConfigFile string              `json:"configFile"`
	Config     Config              `json:"config"`
	Artifacts  []artifact.Artifact `json:"contracts"`
}

// Clone returns a deep copy of d.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}

	out := &Descriptor{
		ConfigFile: d.ConfigFile,
		Config:     d.Config,
		Artifacts:  make([]artifact.Artifact, 0, len(d.Artifacts)),
	}

	for _, a := range d.Artifacts {
		out.Artifacts = append(out.Artifacts, a.Clone())
	}

	return out
}

// Loader loads a project descriptor from a configuration file.
type Loader interface {
	Load(configFile string) (*Descriptor, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(configFile string) (*Descriptor, error)

// Load calls f.
func (f LoaderFunc) Load(configFile string) (*Descriptor, error) { return f(configFile) }
