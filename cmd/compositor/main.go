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

// Command compositor is the host-side window manager: it accepts HolyC
// interpreter connections over a Unix domain socket and composites their
// shared-memory framebuffers.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/templelinux/templelinux/internal/compositor"
	"github.com/templelinux/templelinux/internal/config"
	"github.com/templelinux/templelinux/internal/ipc"
	"github.com/templelinux/templelinux/internal/logx"
)

var verboseFlag bool

func parseFlags() {
	flag.BoolVar(&verboseFlag, "temple_log", false, "Verbose compositor log")
	flag.Parse()
}

func main() {
	os.Exit(run())
}

func run() int {
	parseFlags()
	logx.SetVerbose(verboseFlag)
	defer logx.Flush()

	cfg, err := config.FromEnviron()
	if err != nil {
		fmt.Fprintln(os.Stderr, "compositor:", err)
		return 1
	}

	l, err := ipc.Listen(cfg.SocketPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compositor: listen:", err)
		return 1
	}
	defer os.Remove(cfg.SocketPath)

	c := compositor.New(compositor.InternalW, compositor.InternalH, cfg.SyncPresent)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() { serveErr <- c.Serve(l) }()

	logx.Always("compositor: listening on %s", cfg.SocketPath)

	for {
		select {
		case ev := <-c.Events:
			c.ApplyClientEvent(ev)
		case <-sig:
			logx.Always("compositor: shutting down")
			c.Shutdown()
			l.Close()
			return 0
		case err := <-serveErr:
			if err != nil {
				fmt.Fprintln(os.Stderr, "compositor: serve:", err)
				return 1
			}
			return 0
		}
	}
}
