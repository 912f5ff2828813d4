package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/livefir/livemarkup/cmd/lmt/commands"
	"github.com/livefir/livemarkup/cmd/lmt/internal/ui"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error

	switch command {
	case "compile":
		err = commands.Compile(args)
	case "render":
		err = commands.Render(args)
	case "diff":
		err = commands.Diff(args)
	case "play":
		err = ui.Play(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("lmt version %s\n", version)
	if commit != "unknown" {
		fmt.Printf("commit: %s\n", commit)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		fmt.Printf("go: %s\n", info.GoVersion)
	}
}

func printUsage() {
	fmt.Println(`lmt - livemarkup template tool

Usage:
  lmt compile <template> [flags]   Compile a template and report its shape
  lmt render <template> [flags]    Render a template against bindings
  lmt diff <template> [flags]      Show the patch between two binding sets
  lmt play <template> [flags]      Interactive render/patch explorer
  lmt version                      Print version
  lmt help                         Show this help

Flags:
  -m <manifest.yaml>   Component manifest to register before compiling
  -b <bindings.json>   Bindings file (render, diff, play)
  -B <bindings.json>   Second bindings file (diff)
  -minify              Minify static fragments at compile time

Run 'lmt compile page.lmt' to check a template, or
'lmt diff page.lmt -b before.json -B after.json' to inspect a patch.`)
}
