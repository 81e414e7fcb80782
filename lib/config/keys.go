// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// GroupVLANs maps a ChurchTools group id to a VLAN id.
//
// Keys are decoded from the mapping node directly so that quoted keys
// (the only kind JSON has) and bare YAML integers both work.
type GroupVLANs map[int64]int

// UnmarshalYAML implements yaml.Unmarshaler.
func (g *GroupVLANs) UnmarshalYAML(node *yaml.Node) error {
	result := make(GroupVLANs)
	err := decodeIDKeyedMapping(node, func(id int64, value *yaml.Node) error {
		var vlan int
		if err := value.Decode(&vlan); err != nil {
			return fmt.Errorf("group %d: %w", id, err)
		}
		result[id] = vlan
		return nil
	})
	if err != nil {
		return err
	}
	*g = result
	return nil
}

func (g GroupVLANs) validate(field string) []error {
	var errs []error
	for group, vlan := range g {
		if group <= 0 {
			errs = append(errs, fmt.Errorf("%s: group id %d must be positive", field, group))
		}
		if vlan < 0 {
			errs = append(errs, fmt.Errorf("%s: vlan %d for group %d must be greater than or equal to 0", field, vlan, group))
		}
	}
	return errs
}

// PersonOverrides maps a ChurchTools person id to that person's
// communication overrides.
type PersonOverrides map[int64]PersonOverride

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PersonOverrides) UnmarshalYAML(node *yaml.Node) error {
	result := make(PersonOverrides)
	err := decodeIDKeyedMapping(node, func(id int64, value *yaml.Node) error {
		var override PersonOverride
		if err := value.Decode(&override); err != nil {
			return fmt.Errorf("person %d: %w", id, err)
		}
		result[id] = override
		return nil
	})
	if err != nil {
		return err
	}
	*p = result
	return nil
}

func decodeIDKeyedMapping(node *yaml.Node, each func(id int64, value *yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of ids", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		id, err := strconv.ParseInt(key.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: key %q is not an integer id", key.Line, key.Value)
		}
		if err := each(id, value); err != nil {
			return err
		}
	}
	return nil
}
