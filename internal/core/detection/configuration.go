package detection

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/warden/internal/core/sequence"
)

// Configuration is the opaque tunable bag of a detection. The manager passes it through
// untouched; heuristics decode it into their own structs.
type Configuration = sequence.Configuration

// YAMLConfiguration holds tunables as a YAML document.
type YAMLConfiguration struct {
	node yaml.Node
}

var _ Configuration = (*YAMLConfiguration)(nil)

// ParseYAML parses a YAML document. An empty document decodes as nothing.
func ParseYAML(data []byte) (*YAMLConfiguration, error) {
	c := &YAMLConfiguration{}
	if err := yaml.Unmarshal(data, &c.node); err != nil {
		return nil, fmt.Errorf("parse detection configuration: %w", err)
	}
	return c, nil
}

// EncodeYAML captures v, typically a defaults struct, as a configuration.
func EncodeYAML(v any) (*YAMLConfiguration, error) {
	c := &YAMLConfiguration{}
	if err := c.node.Encode(v); err != nil {
		return nil, fmt.Errorf("encode detection configuration: %w", err)
	}
	return c, nil
}

// Decode fills out from the document, leaving fields the document does not mention untouched.
func (c *YAMLConfiguration) Decode(out any) error {
	if c == nil || c.node.Kind == 0 {
		return nil
	}
	if err := c.node.Decode(out); err != nil {
		return fmt.Errorf("decode detection configuration: %w", err)
	}
	return nil
}

// Empty is a configuration with no tunables.
var Empty Configuration = (*YAMLConfiguration)(nil)
