// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Identity is the API account's own person record, from /api/whoami.
type Identity struct {
	ID   int64
	GUID string
}

// Member is one entry of a group's member list.
type Member struct {
	PersonID  int64
	FirstName string
	LastName  string
	GUID      string

	// Fields holds the person fields ChurchTools includes with the
	// membership, keyed by field name.
	Fields map[string]string
}

// Field returns the named person field, or "" if absent.
func (m Member) Field(name string) string {
	return m.Fields[name]
}

// Person is a single person record from /api/persons/{id}.
type Person struct {
	ID        int64
	FirstName string
	LastName  string
	GUID      string

	// Fields holds every scalar attribute of the record by name,
	// including the ones above.
	Fields map[string]string
}

// Field returns the named attribute, or "" if absent.
func (p Person) Field(name string) string {
	return p.Fields[name]
}

// numericID decodes an identifier that ChurchTools sends either as a
// JSON number or as a decimal string (domainIdentifier is a string).
type numericID int64

func (id *numericID) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return fmt.Errorf("directory: invalid numeric id %s", data)
	}
	*id = numericID(value)
	return nil
}

type whoAmIResponse struct {
	Data struct {
		ID   numericID `json:"id"`
		GUID string    `json:"guid"`
	} `json:"data"`
}

type membersResponse struct {
	Data []wireMember `json:"data"`
	Meta struct {
		Pagination struct {
			Current  int `json:"current"`
			LastPage int `json:"lastPage"`
		} `json:"pagination"`
	} `json:"meta"`
}

type wireMember struct {
	PersonID numericID `json:"personId"`
	Person   struct {
		DomainAttributes struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
			GUID      string `json:"guid"`
		} `json:"domainAttributes"`
	} `json:"person"`
	PersonFields map[string]json.RawMessage `json:"personFields"`
	Fields       []struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	} `json:"fields"`
}

func (w wireMember) member() Member {
	member := Member{
		PersonID:  int64(w.PersonID),
		FirstName: w.Person.DomainAttributes.FirstName,
		LastName:  w.Person.DomainAttributes.LastName,
		GUID:      w.Person.DomainAttributes.GUID,
		Fields:    make(map[string]string),
	}
	for name, raw := range w.PersonFields {
		if value, ok := scalarString(raw); ok {
			member.Fields[name] = value
		}
	}
	// The fields list takes precedence when both carry a name.
	for _, field := range w.Fields {
		if value, ok := scalarString(field.Value); ok {
			member.Fields[field.Name] = value
		}
	}
	return member
}

type groupsResponse struct {
	Data []struct {
		Group struct {
			DomainIdentifier numericID `json:"domainIdentifier"`
		} `json:"group"`
	} `json:"data"`
}

type personResponse struct {
	Data map[string]json.RawMessage `json:"data"`
}

// scalarString converts a JSON string, number, or boolean to its text
// form. Objects, arrays, and null are reported as absent.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return "", false
		}
		return value, true
	case '{', '[', 'n':
		return "", false
	default:
		return string(raw), true
	}
}
