// Copyright 2020 Nelson Elhage
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/google/subcommands"
	"github.com/nelhage/modecast/channel"
	"github.com/nelhage/modecast/cmd/internal/cli"
	"github.com/nelhage/modecast/frame"
	"github.com/olekukonko/tablewriter"
)

type ListCommand struct{}

func (*ListCommand) Name() string     { return "ls" }
func (*ListCommand) Synopsis() string { return "Show the frame carried by every object in the directory" }
func (*ListCommand) Usage() string {
	return `ls
`
}

func (c *ListCommand) SetFlags(flags *flag.FlagSet) {}

func describe(v frame.Value) string {
	if channel.IsDecoy(v) {
		return "decoy"
	}
	return strconv.Quote(string(rune(v)))
}

func (c *ListCommand) Execute(ctx context.Context, flag *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	global := cli.MustState(ctx)

	st, err := global.Store()
	if err != nil {
		log.Printf("Failed to connect (%s)", err.Error())
		return subcommands.ExitFailure
	}
	defer st.Close()

	entries, err := st.List(ctx)
	if err != nil {
		log.Printf("Operation failed: %s", err.Error())
		return subcommands.ExitFailure
	}

	table := tablewriter.NewWriter(stdout)
	table.SetHeader([]string{"Name", "Perms", "Value", "Direct"})
	table.SetBorder(false)
	status := subcommands.ExitSuccess
	for _, ent := range entries {
		v, err := frame.ParsePermString(ent.Perm)
		if err != nil {
			table.Append([]string{ent.Name, ent.Perm, "?", err.Error()})
			status = subcommands.ExitFailure
			continue
		}
		table.Append([]string{ent.Name, ent.Perm, fmt.Sprintf("%d", v), describe(v)})
	}
	table.Render()
	return status
}
