package manifest

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/bosh-bootstrap/internal/domain/release"
)

const (
	releasesKey = "releases"
	nameKey     = "name"
	versionKey  = "version"
	urlKey      = "url"

	strTag = "!!str"

	encoderIndent = 2
)

// Document is a parsed manifest whose root is a mapping.
type Document struct {
	root *yaml.Node
}

// Entry is one element of the manifest's release list.
type Entry struct {
	node *yaml.Node
	ref  release.Reference
}

// Parse decodes text into a Document.
// Anything that is not a YAML mapping at the top level is rejected.
func Parse(text string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, &Error{Reason: ErrUnparseable, Err: err}
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &Error{Reason: ErrNotMapping, Detail: "empty document"}
	}

	if top := resolve(root.Content[0]); top.Kind != yaml.MappingNode {
		return nil, &Error{Reason: ErrNotMapping, Detail: "found " + kindName(top)}
	}

	return &Document{root: &root}, nil
}

// Releases returns the entries of the release list in manifest order.
// A missing or non-sequence list yields no entries.
func (d *Document) Releases() []*Entry {
	list := lookup(d.mapping(), releasesKey)
	if list == nil || list.Kind != yaml.SequenceNode {
		return nil
	}

	entries := make([]*Entry, 0, len(list.Content))

	for _, item := range list.Content {
		item = resolve(item)
		if item.Kind != yaml.MappingNode {
			continue
		}

		entries = append(entries, &Entry{
			node: item,
			ref: release.ParseReference(
				scalar(lookup(item, nameKey)),
				scalar(lookup(item, versionKey)),
				scalar(lookup(item, urlKey)),
			),
		})
	}

	return entries
}

// String serializes the document back to YAML.
func (d *Document) String() (string, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(encoderIndent)

	if err := enc.Encode(d.root); err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	return buf.String(), nil
}

func (d *Document) mapping() *yaml.Node {
	return resolve(d.root.Content[0])
}

// Reference returns the classified release reference of the entry.
func (e *Entry) Reference() release.Reference {
	return e.ref
}

// Name returns the release name of the entry.
func (e *Entry) Name() string {
	return e.ref.ReleaseName()
}

// Apply overwrites the entry's name, version and url with f.
// Other keys of the entry are left as they are.
func (e *Entry) Apply(f release.Fragment) {
	setString(e.node, nameKey, f.Name)
	setString(e.node, versionKey, f.Version)
	setString(e.node, urlKey, f.URL)

	e.ref = release.ParseReference(f.Name, f.Version, f.URL)
}

// lookup returns the value node stored under key in a mapping node.
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return resolve(mapping.Content[i+1])
		}
	}

	return nil
}

// setString stores value under key as a string scalar, appending the key if needed.
// The style is reset so the encoder quotes values such as "3" that would
// otherwise read back as numbers.
func setString(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value != key {
			continue
		}

		mapping.Content[i+1] = &yaml.Node{
			Kind:        yaml.ScalarNode,
			Tag:         strTag,
			Value:       value,
			LineComment: mapping.Content[i+1].LineComment,
		}

		return
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: strTag, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: strTag, Value: value},
	)
}

func scalar(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}

	return n.Value
}

// resolve follows alias nodes to their anchors.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}

	return n
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "unknown node"
	}
}
