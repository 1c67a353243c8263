// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package builtincommand

import (
	"github.com/samber/lo"
)

type BuiltinCommand string

const (
	Resolve          BuiltinCommand = "resolve"
	Update           BuiltinCommand = "update"
	Edit             BuiltinCommand = "edit"
	Unedit           BuiltinCommand = "unedit"
	ShowDependencies BuiltinCommand = "show-dependencies"
	State            BuiltinCommand = "state"
	Mirror           BuiltinCommand = "mirror"
	Publish          BuiltinCommand = "publish"
	Version          BuiltinCommand = "version"
)

var BuiltinCommands = []BuiltinCommand{Resolve, Update, Edit, Unedit, ShowDependencies, State, Mirror, Publish, Version}

func IsBuiltinCommand(args []string) bool {
	if len(args) > 1 {
		elems := lo.Map(BuiltinCommands, func(item BuiltinCommand, _ int) string {
			return string(item)
		})
		return lo.Contains(elems, args[1])
	}
	return false
}
