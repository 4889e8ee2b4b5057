// Copyright 2023 The Z2K Plus+ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command zindex-build runs the Top-Level Builder once against a
// PathMaster-shaped corpus root and publishes the result.
//
// Usage: zindex-build [flags] <root>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	sglog "github.com/sourcegraph/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/kosak/z2kplus-sub002/zindex"
	"github.com/kosak/z2kplus-sub002/zindex/builder"
	"github.com/kosak/z2kplus-sub002/zindex/pathmaster"
)

func main() {
	fs := flag.NewFlagSet("zindex-build", flag.ExitOnError)
	numShards := fs.Int("shards", 0, "number of shards to split the corpus into; 0 means runtime.NumCPU()")

	var logger sglog.Logger
	root := &ffcli.Command{
		Name:       "zindex-build",
		ShortUsage: "zindex-build [flags] <root>",
		ShortHelp:  "build a frozen zindex from a PathMaster-shaped corpus root and publish it",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("zindex-build: expected exactly one <root> argument, got %d", len(args))
			}
			return run(args[0], *numShards, logger)
		},
	}

	// ZINDEX_BUILD_SHARDS in the environment overrides -shards when the
	// flag is left at its default, the same fallback
	// zoekt-sourcegraph-indexserver wires up for its own flags.
	if err := root.Parse(os.Args[1:], ff.WithEnvVarPrefix("ZINDEX_BUILD")); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}

	liblog := sglog.Init(sglog.Resource{Name: "zindex-build"})
	defer liblog.Sync()
	logger = sglog.Scoped("zindex-build", "")

	_, _ = maxprocs.Set()

	if err := root.Run(context.Background()); err != nil {
		logger.Error("build failed", sglog.Error(err))
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(root string, numShards int, logger sglog.Logger) error {
	pm, err := pathmaster.Create(root)
	if err != nil {
		return err
	}
	opts := builder.Options{
		LoggedRange:   zindex.EverythingLogged(),
		UnloggedRange: zindex.EverythingUnlogged(),
		NumShards:     numShards,
		Logger:        logger,
	}
	return builder.Build(context.Background(), pm, opts)
}
