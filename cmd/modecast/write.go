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
	"io/ioutil"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/nelhage/modecast/channel"
	"github.com/nelhage/modecast/cmd/internal/cli"
)

const unsetDecoyRate = -1

type WriteCommand struct {
	packed    bool
	decoyRate float64
	seed      int64
	file      string
}

func (*WriteCommand) Name() string     { return "write" }
func (*WriteCommand) Synopsis() string { return "Write a message into the remote directory's permissions" }
func (*WriteCommand) Usage() string {
	return `write [FLAGS] MESSAGE...
write [FLAGS] -file PATH

The directory should be empty: frames are numbered from zero.
`
}

func (c *WriteCommand) SetFlags(flags *flag.FlagSet) {
	flags.BoolVar(&c.packed, "packed", false, "Pack 7-bit characters densely into frames, with no decoys")
	flags.Float64Var(&c.decoyRate, "decoy-rate", unsetDecoyRate, "Probability of a decoy frame in direct mode (default from config, or 0.35)")
	flags.Int64Var(&c.seed, "seed", 0, "Seed for decoy placement (default: time-based)")
	flags.StringVar(&c.file, "file", "", "Read the message from PATH ('-' for stdin)")
}

func (c *WriteCommand) message(args []string) (string, error) {
	switch c.file {
	case "":
		return strings.Join(args, " "), nil
	case "-":
		data, err := ioutil.ReadAll(os.Stdin)
		return string(data), err
	default:
		data, err := ioutil.ReadFile(c.file)
		return string(data), err
	}
}

func (c *WriteCommand) Execute(ctx context.Context, flag *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	global := cli.MustState(ctx)

	msg, err := c.message(flag.Args())
	if err != nil {
		log.Printf("write: reading message: %s", err.Error())
		return subcommands.ExitFailure
	}
	if msg == "" {
		log.Printf("write: no message given")
		return subcommands.ExitUsageError
	}

	if c.decoyRate != unsetDecoyRate {
		if err := channel.CheckDecoyRate(c.decoyRate); err != nil {
			log.Printf("write: -decoy-rate %s", err.Error())
			return subcommands.ExitUsageError
		}
	} else if rate := global.Config.DecoyRate; rate != nil {
		if err := channel.CheckDecoyRate(*rate); err != nil {
			log.Printf("write: decoy_rate in %s: %s", cli.ConfigPath(), err.Error())
			return subcommands.ExitFailure
		}
	}

	mode := channel.Direct
	if c.packed {
		mode = channel.Packed
	}
	opts := global.ChannelOptions(mode)
	if c.decoyRate != unsetDecoyRate {
		opts.Policy = channel.RandomPolicy{Rate: c.decoyRate}
	}
	if c.seed != 0 {
		opts.Rand = rand.New(rand.NewSource(c.seed))
	}
	// Fail before connecting on messages that can't be carried.
	if _, err := channel.Plan(msg, channel.Options{Mode: mode, Policy: channel.NoDecoys}); err != nil {
		log.Printf("write: %s", err.Error())
		return subcommands.ExitFailure
	}

	st, err := global.WriterStore()
	if err != nil {
		log.Printf("Failed to connect (%s)", err.Error())
		return subcommands.ExitFailure
	}
	defer st.Close()

	frames, err := channel.NewEncoder(st, opts).Write(ctx, msg)
	if err != nil {
		log.Printf("Operation failed: %s", err.Error())
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "Message written successfully (%d objects)\n", len(frames))
	return subcommands.ExitSuccess
}
