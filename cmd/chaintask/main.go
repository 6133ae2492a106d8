// Package main is the entry point for the chaintask CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chaintask/internal/backend/ethereum"
	"chaintask/internal/cli"
	"chaintask/internal/commands"
	"chaintask/internal/config"
	"chaintask/internal/session"
	"chaintask/internal/tasksync"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Wire the provider, session manager, and synchronizer together.
	factory := func(ctx context.Context, cfg *config.Config) (*commands.Env, error) {
		log := cfg.Logger()
		client, err := ethereum.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		mgr := session.New(client, client.Bind, session.Options{
			ExpectedChainID: cfg.Settings.ChainID,
			ContractAddress: cfg.Settings.ContractAddress,
		}, log)
		tasks := tasksync.New(mgr, log)
		mgr.SetTasks(tasks)
		return &commands.Env{Provider: client, Manager: mgr, Tasks: tasks}, nil
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
