// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// vibestack-cli is a command-line tool for controlling a running VibeStack
// daemon. Output is pretty-printed JSON for machine consumption.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/check-the-vibe/vibestack/pkg/client"
)

var (
	version = "0.9"
	apiURL  = "http://localhost:8080"

	// API client instance
	apiClient *client.Client
)

const (
	exitUsage = 2
	exitError = 1
)

func main() {
	// Check for VIBESTACK_API environment variable
	if env := os.Getenv("VIBESTACK_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	// Parse the global -root flag and filter it out
	var root string
	var filteredArgs []string
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		if args[i] == "-root" && i+1 < len(args) {
			root = args[i+1]
			i++
			continue
		}
		filteredArgs = append(filteredArgs, args[i])
	}

	apiClient = client.New(apiURL)

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(exitUsage)
	}

	cmd := filteredArgs[0]
	cmdArgs := filteredArgs[1:]

	var err error
	switch cmd {
	case "list":
		err = cmdList(root)
	case "show":
		err = cmdShow(cmdArgs, root)
	case "attach":
		err = cmdAttach(cmdArgs, root)
	case "create":
		err = cmdCreate(cmdArgs, root)
	case "one-off":
		err = cmdOneOff(cmdArgs, root)
	case "send":
		err = cmdSend(cmdArgs)
	case "kill":
		err = cmdKill(cmdArgs, root)
	case "logs":
		err = cmdLogs(cmdArgs)
	case "jobs":
		err = cmdJobs(root)
	case "version", "-v", "--version":
		fmt.Printf("vibestack-cli %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitUsage)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if apiErr, ok := err.(*client.APIError); ok && apiErr.StatusCode == 400 {
			os.Exit(exitUsage)
		}
		os.Exit(exitError)
	}
}

func printUsage() {
	fmt.Println(`vibestack-cli - Control a running VibeStack daemon

Usage:
  vibestack-cli [-root DIR] <command> [arguments]

Global Flags:
  -root DIR      Override the session root directory

Environment:
  VIBESTACK_API  Base URL of the VibeStack API (default: http://localhost:8080)

Commands:
  list                         List known sessions
  show <name>                  Show metadata for a session
  attach <name>                Attach to a session via tmux
  create <name> [options]      Create a long-running session
    -template NAME             Template to base the command on (default: bash)
    -command CMD               Override command to run in the session
    -description TEXT          Optional description
    -workdir DIR               Working directory for the session
  one-off <name> <command>     Run a one-off command inside tmux
    -workdir DIR               Working directory for the command
  send <name> <text>           Send text to a session pane
    -no-enter                  Do not append ENTER
  kill <name>                  Terminate an active session
  logs <name> [-lines N]       Tail a session log (default: 200 lines)
  jobs                         List the job ledger`)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func cmdList(root string) error {
	sessions, err := apiClient.Sessions.List(context.Background(), root)
	if err != nil {
		return err
	}
	return printJSON(sessions)
}

func cmdShow(args []string, root string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: show <name>")
	}
	record, err := apiClient.Sessions.Get(context.Background(), args[0], root)
	if err != nil {
		return err
	}
	return printJSON(record)
}

// cmdAttach replaces this process with tmux attached to the session.
func cmdAttach(args []string, root string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: attach <name>")
	}
	name := args[0]
	record, err := apiClient.Sessions.Get(context.Background(), name, root)
	if err != nil {
		return err
	}
	if record.Status != "running" && record.Status != "starting" {
		return fmt.Errorf("session '%s' is not running (status: %s)", name, record.Status)
	}
	tmux, err := exec.LookPath("tmux")
	if err != nil {
		return fmt.Errorf("tmux not found in PATH: %w", err)
	}
	return syscall.Exec(tmux, []string{"tmux", "attach-session", "-t", name}, os.Environ())
}

func cmdCreate(args []string, root string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: create <name> [options]")
	}
	req := client.CreateSessionRequest{
		Name:        args[0],
		Template:    "bash",
		SessionRoot: root,
	}
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-template":
			i++
			req.Template = argAt(args, i)
		case "-command":
			i++
			command := argAt(args, i)
			req.Command = &command
		case "-description":
			i++
			req.Description = argAt(args, i)
		case "-workdir":
			i++
			req.WorkingDir = argAt(args, i)
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	record, err := apiClient.Sessions.Create(context.Background(), req)
	if err != nil {
		return err
	}
	return printJSON(record)
}

func cmdOneOff(args []string, root string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: one-off <name> <command> [-workdir DIR]")
	}
	req := client.OneOffRequest{
		Name:        args[0],
		Command:     args[1],
		SessionRoot: root,
	}
	for i := 2; i < len(args); i++ {
		switch args[i] {
		case "-workdir":
			i++
			req.WorkingDir = argAt(args, i)
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	record, err := apiClient.Jobs.EnqueueOneOff(context.Background(), req)
	if err != nil {
		return err
	}
	return printJSON(record)
}

func cmdSend(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: send <name> <text> [-no-enter]")
	}
	enter := true
	for _, arg := range args[2:] {
		if arg == "-no-enter" {
			enter = false
		}
	}
	return apiClient.Sessions.SendInput(context.Background(), args[0], args[1], enter)
}

func cmdKill(args []string, root string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kill <name>")
	}
	return apiClient.Sessions.Kill(context.Background(), args[0], root)
}

func cmdLogs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: logs <name> [-lines N]")
	}
	lines := 200
	for i := 1; i < len(args); i++ {
		if args[i] == "-lines" {
			i++
			parsed, err := strconv.Atoi(argAt(args, i))
			if err != nil {
				return fmt.Errorf("invalid -lines value")
			}
			lines = parsed
		}
	}
	log, err := apiClient.Sessions.TailLog(context.Background(), args[0], lines)
	if err != nil {
		return err
	}
	fmt.Println(log)
	return nil
}

func cmdJobs(root string) error {
	jobs, err := apiClient.Jobs.List(context.Background(), root)
	if err != nil {
		return err
	}
	return printJSON(jobs)
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
