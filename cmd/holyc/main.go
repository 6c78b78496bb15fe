// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command holyc is the interpreter entry point: it resolves
// configuration from the environment, opens the hosted Temple
// filesystem, optionally connects to a running compositor, and runs
// one HolyC program.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/templelinux/templelinux/internal/config"
	"github.com/templelinux/templelinux/internal/fsroot"
	"github.com/templelinux/templelinux/internal/holyc"
	"github.com/templelinux/templelinux/internal/logx"
)

var (
	verboseFlag  bool
	headlessFlag bool
)

func parseFlags() []string {
	flag.BoolVar(&verboseFlag, "holyc_log", false, "Verbose HolyC interpreter log")
	flag.BoolVar(&headlessFlag, "headless", false, "Run without connecting to a compositor (no Display)")
	flag.Parse()
	return flag.Args()
}

func main() {
	os.Exit(run())
}

func run() int {
	args := parseFlags()
	logx.SetVerbose(verboseFlag)
	defer logx.Flush()

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: holyc [-holyc_log] [-headless] <program.HC>")
		return 2
	}

	cfg, err := config.FromEnviron()
	if err != nil {
		fmt.Fprintln(os.Stderr, "holyc:", err)
		return 1
	}

	fs, err := fsroot.New(cfg.TempleRoot, cfg.TempleOSRoot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "holyc:", err)
		return 1
	}

	var disp holyc.Display
	if !headlessFlag {
		ipcDisp, err := holyc.DialCompositor(cfg.SocketPath, cfg.SyncPresent)
		if err != nil {
			fmt.Fprintln(os.Stderr, "holyc: connect compositor:", err)
			return 1
		}
		defer ipcDisp.Close()
		disp = ipcDisp
	}

	if err := holyc.Interpret(args[0], fs, cfg, os.Stdout, disp); err != nil {
		fmt.Fprintln(os.Stderr, "holyc:", err)
		return 1
	}
	return 0
}
