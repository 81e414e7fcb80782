// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
)

// GetMembers returns every member of a group, reading all pages.
func (client *Client) GetMembers(ctx context.Context, groupID int64) ([]Member, error) {
	if groupID <= 0 {
		return nil, fmt.Errorf("directory: group id must be positive, got %d", groupID)
	}

	path := fmt.Sprintf("/api/groups/%d/members", groupID)
	var members []Member
	for page, lastPage := 1, 1; page <= lastPage; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(defaultPageSize))

		var response membersResponse
		if err := client.get(ctx, path, query, &response); err != nil {
			return nil, fmt.Errorf("directory: members of group %d (page %d): %w", groupID, page, err)
		}
		for _, wire := range response.Data {
			members = append(members, wire.member())
		}
		if response.Meta.Pagination.LastPage > lastPage {
			lastPage = response.Meta.Pagination.LastPage
		}
	}
	return members, nil
}

// GetMembersByAttribute returns the value of one person field for each
// member of a group, keyed by person id. Members without the field are
// omitted.
func (client *Client) GetMembersByAttribute(ctx context.Context, groupID int64, attribute string) (map[int64]string, error) {
	if attribute == "" {
		return nil, fmt.Errorf("directory: attribute name is required")
	}
	members, err := client.GetMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	result := make(map[int64]string, len(members))
	for _, member := range members {
		if value, ok := member.Fields[attribute]; ok {
			result[member.PersonID] = value
		}
	}
	return result, nil
}

// GetUserGroups returns the ids of the groups a person belongs to, in
// ascending order.
func (client *Client) GetUserGroups(ctx context.Context, personID int64) ([]int64, error) {
	if personID <= 0 {
		return nil, fmt.Errorf("directory: person id must be positive, got %d", personID)
	}

	var response groupsResponse
	if err := client.get(ctx, fmt.Sprintf("/api/persons/%d/groups", personID), nil, &response); err != nil {
		return nil, fmt.Errorf("directory: groups of person %d: %w", personID, err)
	}

	groups := make([]int64, 0, len(response.Data))
	for _, entry := range response.Data {
		groups = append(groups, int64(entry.Group.DomainIdentifier))
	}
	slices.Sort(groups)
	return slices.Compact(groups), nil
}

// GetPerson returns a single person record.
func (client *Client) GetPerson(ctx context.Context, personID int64) (*Person, error) {
	if personID <= 0 {
		return nil, fmt.Errorf("directory: person id must be positive, got %d", personID)
	}

	var response personResponse
	if err := client.get(ctx, fmt.Sprintf("/api/persons/%d", personID), nil, &response); err != nil {
		return nil, fmt.Errorf("directory: person %d: %w", personID, err)
	}

	person := &Person{ID: personID, Fields: make(map[string]string, len(response.Data))}
	for name, raw := range response.Data {
		if value, ok := scalarString(raw); ok {
			person.Fields[name] = value
		}
	}
	person.FirstName = person.Fields["firstName"]
	person.LastName = person.Fields["lastName"]
	person.GUID = person.Fields["guid"]
	return person, nil
}
