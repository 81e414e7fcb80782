// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory is a typed client for the parts of the ChurchTools
// REST API that wifisync reads: group membership, person records, and
// the identity of the API account itself.
//
// ChurchTools authenticates with a session cookie. [Client.Login] posts
// the API account's credentials to /api/login and the session cookie is
// kept in the client's cookie jar for every later request.
//
// Group member lists are paginated; [Client.GetMembers] follows
// meta.pagination.lastPage until every page has been read. A 429 or
// 503 response carrying Retry-After is retried once after the
// advertised delay. Non-2xx responses become [*APIError].
package directory
