// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/grantmap/grantmap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
