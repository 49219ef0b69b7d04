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

	"github.com/google/subcommands"
	"github.com/nelhage/modecast/channel"
	"github.com/nelhage/modecast/cmd/internal/cli"
)

type ReadCommand struct {
	packed bool
}

func (*ReadCommand) Name() string     { return "read" }
func (*ReadCommand) Synopsis() string { return "Read a message back out of the remote directory" }
func (*ReadCommand) Usage() string {
	return `read [FLAGS]

Packed messages may come back with trailing NUL characters from the
padding of the last frame.
`
}

func (c *ReadCommand) SetFlags(flags *flag.FlagSet) {
	flags.BoolVar(&c.packed, "packed", false, "The message was written with -packed")
}

func (c *ReadCommand) Execute(ctx context.Context, flag *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	global := cli.MustState(ctx)

	mode := channel.Direct
	if c.packed {
		mode = channel.Packed
	}

	st, err := global.Store()
	if err != nil {
		log.Printf("Failed to connect (%s)", err.Error())
		return subcommands.ExitFailure
	}
	defer st.Close()

	msg, err := channel.NewDecoder(st, global.ChannelOptions(mode)).Read(ctx)
	if err != nil {
		log.Printf("Operation failed: %s", err.Error())
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, msg)
	return subcommands.ExitSuccess
}
