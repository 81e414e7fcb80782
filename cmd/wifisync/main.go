// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// wifisync keeps WiFi credentials in step with ChurchTools group
// membership and delivers them to each member over Matrix.
//
// Usage:
//
//	wifisync run [--config path]        # sync loop
//	wifisync sync [--config path]       # one pass
//	wifisync authorize <username>       # WiFi login decision
//	wifisync users list|add|set|delete|show
//	wifisync keygen <path>
//	wifisync templates render <name>
//	wifisync version
//
// Run 'wifisync --help' for the full command list.
package main

import (
	"os"

	"github.com/bureau-foundation/wifisync/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return root(os.Stdout, os.Stdin).Execute(os.Args[1:])
}
