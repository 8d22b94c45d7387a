// Copyright 2018 Johannes Weigend
// Licensed under the Apache License, Version 2.0

// Command replica bootstraps a single key/value store replica: it parses
// its three positional arguments, dials the simulator, and runs the
// message loop until killed.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/s-macke/raftkv/internal/clock"
	"github.com/s-macke/raftkv/internal/raft"
	"github.com/s-macke/raftkv/internal/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logrus.WithError(err).Fatal("replica exited")
	}
}

// run parses `replica <port> <id> <peer-id>...` — no flags, no environment
// variables (spec.md §6).
func run(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: replica <simulator-port> <id> <peer-id>...")
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid simulator port %q: %w", args[0], err)
	}
	id := args[1]
	peers := args[2:]

	log := logrus.WithField("replica", id)

	sock, err := transport.Dial(port)
	if err != nil {
		return fmt.Errorf("dial simulator: %w", err)
	}
	defer sock.Close()

	node := raft.New(id, peers, clock.Real{}, logrus.StandardLogger())

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	log.WithField("port", port).WithField("peers", peers).Info("replica starting")
	transport.Loop(sock, node, clock.Real{}, stop, log)
	return nil
}
