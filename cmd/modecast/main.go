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
	"io"
	"log"
	"os"

	"github.com/google/subcommands"
	"github.com/nelhage/modecast/cmd/internal/cli"
	"github.com/nelhage/modecast/tracing"
	"golang.org/x/crypto/ssh/terminal"
)

var stdout io.Writer = os.Stdout

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")

	subcommands.Register(&WriteCommand{}, "")
	subcommands.Register(&ReadCommand{}, "")
	subcommands.Register(&ListCommand{}, "")
	subcommands.Register(&ConfigCommand{}, "config")

	subcommands.ImportantFlag("host")
	subcommands.ImportantFlag("dir")

	ctx := context.Background()
	code := runModecast(ctx)
	os.Exit(code)
}

func runModecast(ctx context.Context) int {
	var over cli.Config
	var askPass bool
	var trace string
	flag.StringVar(&over.Store, "store", "", "Store address: ftp://USER@HOST:PORT/DIR, ftps://... or s3://BUCKET/PATH")
	flag.StringVar(&over.Host, "host", "", "FTP server host")
	flag.IntVar(&over.Port, "port", 0, "FTP server port (default 21)")
	flag.StringVar(&over.User, "user", "", "FTP user (default anonymous)")
	flag.StringVar(&over.Password, "pass", "", "FTP password (or set MODECAST_PASSWORD)")
	flag.BoolVar(&askPass, "ask-pass", false, "Prompt for the FTP password")
	flag.StringVar(&over.Dir, "dir", "", "Remote directory (default /)")
	flag.BoolVar(&over.Active, "active", false, "Use active instead of passive FTP transfers")
	flag.BoolVar(&over.TLS, "tls", false, "Use explicit FTPS")
	flag.StringVar(&over.Region, "region", "", "AWS region, for s3:// stores")
	flag.StringVar(&over.NamePrefix, "prefix", "", "Name prefix for frame objects (default file)")
	flag.BoolVar(&over.Verbose, "v", false, "Log every frame and listing entry")
	flag.BoolVar(&over.DebugAWS, "debug-aws", false, "Log all AWS requests/responses")
	flag.StringVar(&trace, "trace", "", "Write tracing data to file (.zst to compress)")

	flag.Parse()

	if trace != "" {
		var wt *tracing.WriterTracer
		var err error
		ctx, wt, err = tracing.WithFileTracer(ctx, trace)
		if err != nil {
			log.Printf("trace: %s", err.Error())
			return int(subcommands.ExitFailure)
		}
		defer wt.Close()
	}

	if over.Store == "" {
		over.Store = os.Getenv("MODECAST_STORE")
	}
	if over.Password == "" {
		over.Password = os.Getenv("MODECAST_PASSWORD")
	}
	if askPass {
		os.Stderr.WriteString("Password: ")
		pw, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		os.Stderr.WriteString("\n")
		if err != nil {
			log.Printf("reading password: %s", err.Error())
			return int(subcommands.ExitFailure)
		}
		over.Password = string(pw)
	}
	cfg, err := loadConfig(cli.ConfigPath(), &over)
	if err != nil {
		log.Printf("reading config file: %s", err.Error())
		return int(subcommands.ExitFailure)
	}

	var state cli.GlobalState
	state.Config = cfg
	ctx = cli.WithState(ctx, &state)

	return int(subcommands.Execute(ctx))
}

func loadConfig(file string, over *cli.Config) (*cli.Config, error) {
	cfg, err := cli.ReadConfig(file)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, over)
	return cfg, nil
}

// applyOverrides copies every field set on the command line into cfg.
func applyOverrides(cfg, over *cli.Config) {
	if over.Store != "" {
		cfg.Store = over.Store
	}
	if over.Host != "" {
		cfg.Host = over.Host
	}
	if over.Port != 0 {
		cfg.Port = over.Port
	}
	if over.User != "" {
		cfg.User = over.User
	}
	if over.Dir != "" {
		cfg.Dir = over.Dir
	}
	if over.Region != "" {
		cfg.Region = over.Region
	}
	if over.NamePrefix != "" {
		cfg.NamePrefix = over.NamePrefix
	}
	cfg.Active = cfg.Active || over.Active
	cfg.TLS = cfg.TLS || over.TLS
	cfg.Password = over.Password
	cfg.Verbose = over.Verbose
	cfg.DebugAWS = over.DebugAWS
}
