package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/hupe1980/artifactwatch/internal/maputil"
)

// Extension is the file extension recognized as an artifact.
const Extension = ".json"

// Well-known artifact keys.
const (
	KeyContractName   = "contractName"
	KeyNetworks       = "networks"
	KeySchemaVersion  = "schemaVersion"
	KeyAddress        = "address"
	KeyCreationTxHash = "creationTxHash"
	KeyTxHash         = "transactionHash"
)

// Artifact is a decoded artifact document.
type Artifact map[string]any

// ParseError reports an artifact file that could not be read or decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing artifact %q: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsArtifactFile reports whether name carries the artifact extension. The
// match is case-sensitive.
func IsArtifactFile(name string) bool {
	return filepath.Ext(name) == Extension
}

// Parse decodes data into an Artifact and decorates it for network. An empty
// network leaves the artifact undecorated.
func Parse(data []byte, network string) (Artifact, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, fmt.Errorf("artifact is not a JSON object")
	}

	a := Artifact(doc)
	a.decorate(network)

	return a, nil
}

// ReadFile reads and parses the artifact at path. Failures are returned as
// *ParseError.
func ReadFile(path, network string) (Artifact, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	a, err := Parse(data, network)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return a, nil
}

func (a Artifact) decorate(network string) {
	if network == "" {
		return
	}

	deployment, ok := maputil.Lookup(a, KeyNetworks, network)
	if !ok {
		return
	}

	record, ok := deployment.(map[string]any)
	if !ok {
		return
	}

	if addr, ok := record[KeyAddress]; ok {
		a[KeyAddress] = addr
	}

	if tx, ok := record[KeyTxHash]; ok {
		a[KeyCreationTxHash] = tx
	}
}

// ContractName returns the compiled unit's name, if present.
func (a Artifact) ContractName() string {
	s, _ := maputil.LookupString(a, KeyContractName)
	return s
}

// Address returns the decorated deployment address, if any.
func (a Artifact) Address() string {
	s, _ := maputil.LookupString(a, KeyAddress)
	return s
}

// CreationTxHash returns the decorated deployment transaction hash, if any.
func (a Artifact) CreationTxHash() string {
	s, _ := maputil.LookupString(a, KeyCreationTxHash)
	return s
}

// SchemaVersion returns the artifact's declared schema version, if any.
func (a Artifact) SchemaVersion() string {
	s, _ := maputil.LookupString(a, KeySchemaVersion)
	return s
}

// Clone returns a deep copy of a.
func (a Artifact) Clone() Artifact {
	if a == nil {
		return nil
	}

	return Artifact(maputil.DeepCopyMap(a))
}

// ParseConstraint parses a schema-version constraint such as ">= 3.0.0".
// An empty expression yields a nil constraint that accepts everything.
func ParseConstraint(expr string) (*semver.Constraints, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schema constraint %q: %w", expr, err)
	}

	return c, nil
}

// CheckSchema reports whether the artifact's schema version satisfies c.
// Artifacts without a schema version, or with an unparseable one, fail the
// check with an explanatory error. A nil constraint always passes.
func (a Artifact) CheckSchema(c *semver.Constraints) error {
	if c == nil {
		return nil
	}

	raw := a.SchemaVersion()
	if raw == "" {
		return fmt.Errorf("no %s declared", KeySchemaVersion)
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("unparseable %s %q: %w", KeySchemaVersion, raw, err)
	}

	if !c.Check(v) {
		return fmt.Errorf("%s %s does not satisfy %s", KeySchemaVersion, v, c)
	}

	return nil
}
