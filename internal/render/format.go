package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/artifactwatch/internal/project"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidateFormat checks that format is one of text, json, yaml.
func ValidateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("invalid format %q: must be one of text, json, yaml", format)
	}
}

// Snapshot renders snap in the given format. Output always ends with a
// newline.
func Snapshot(snap *project.Descriptor, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("serializing JSON: %w", err)
		}

		return append(data, '\n'), nil
	case FormatYAML:
		data, err := sigsyaml.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("serializing YAML: %w", err)
		}

		return data, nil
	case FormatText:
		return text(snap), nil
	default:
		return nil, ValidateFormat(format)
	}
}

func text(snap *project.Descriptor) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "project:   %s\n", snap.ConfigFile)
	fmt.Fprintf(&buf, "build:     %s\n", snap.Config.BuildDirectory)
	fmt.Fprintf(&buf, "contracts: %s\n", snap.Config.ContractsBuildDirectory)

	if len(snap.Artifacts) == 0 {
		buf.WriteString("no artifacts\n")
		return buf.Bytes()
	}

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRACT\tADDRESS\tCREATION TX")

	for _, a := range snap.Artifacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", dash(a.ContractName()), dash(a.Address()), dash(a.CreationTxHash()))
	}

	_ = tw.Flush()

	return buf.Bytes()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
