// Package render turns project snapshots into text, JSON or YAML, computes
// unified diffs between successive renderings, and writes renderings to
// their destination.
package render
