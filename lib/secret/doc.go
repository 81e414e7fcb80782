// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for the long-lived
// secrets wifisync holds for a whole process lifetime: the directory
// API password (which doubles as the Matrix login password), the
// Matrix access token, and the age identity that decrypts the
// credential store.
//
// Buffers live in mmap memory that is mlocked, excluded from core
// dumps, and zeroed on Close. Per-user WiFi credentials are short-lived
// strings that must be rendered into chat messages anyway; they are
// not held in Buffers.
//
// Depends on golang.org/x/sys/unix.
package secret
