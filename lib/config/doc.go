// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the wifisync configuration.
//
// There are two sources and they never overlap:
//
//   - a single file named on the command line (YAML, or JSON with
//     comments when it ends in .json/.jsonc) holding groups, VLANs,
//     password policy, paths and chat settings, decoded on top of
//     [Default] and checked by [Config.Validate];
//   - the process environment holding the ChurchTools endpoint and
//     credentials plus the optional key passphrase, read by
//     [LoadEnvironment]. [LoadEnvFile] populates the environment from
//     a dotenv file first when the operator passes one.
//
// Secrets from the environment are moved into [secret.Buffer] values
// immediately and the variables are unset.
//
// Per-person chat policy is resolved by [CommunicationConfig.For],
// which layers the "persons" overrides over "defaults".
package config
