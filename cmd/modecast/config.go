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
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/subcommands"
	"github.com/nelhage/modecast/cmd/internal/cli"
)

type ConfigCommand struct {
	shell bool
	save  bool
}

func (*ConfigCommand) Name() string     { return "config" }
func (*ConfigCommand) Synopsis() string { return "Read/Write modecast configuration" }
func (*ConfigCommand) Usage() string {
	return `config [-shell|-save]
`
}

func (c *ConfigCommand) SetFlags(flags *flag.FlagSet) {
	flags.BoolVar(&c.shell, "shell", false, "Write out the configuration as a set of shell assignments")
	flags.BoolVar(&c.save, "save", false, "Save the effective configuration (minus passwords) to the config file")
}

func shellquote(word string) string {
	word = strings.ReplaceAll(word, `'`, `'"'"'`)
	return fmt.Sprintf(`'%s'`, word)
}

func (c *ConfigCommand) Execute(ctx context.Context, flag *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	global := cli.MustState(ctx)

	if c.save {
		if err := cli.WriteConfig(global.Config, cli.ConfigPath()); err != nil {
			log.Printf("config: %s", err.Error())
			return subcommands.ExitFailure
		}
		log.Printf("wrote %s", cli.ConfigPath())
		return subcommands.ExitSuccess
	}

	target, err := global.Config.ResolveTarget()
	if err != nil {
		log.Printf("modecast config: %s", err.Error())
		return subcommands.ExitFailure
	}
	if c.shell {
		fmt.Fprintf(stdout, "modecast_store=%s\n", shellquote(target.String()))
		fmt.Fprintf(stdout, "modecast_region=%s\n", shellquote(global.Config.Region))
		return subcommands.ExitSuccess
	}

	encoded, err := json.MarshalIndent(global.Config, "", "  ")
	if err != nil {
		log.Printf("config: %s", err.Error())
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "# target: %s\n%s\n", target.String(), encoded)
	return subcommands.ExitSuccess
}
