// Package commands implements the lmt subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/livefir/livemarkup"
	"github.com/livefir/livemarkup/cmd/lmt/internal/manifest"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// options are the flags shared across subcommands.
type options struct {
	templatePath string
	manifestPath string
	bindingsPath string
	secondPath   string
	minify       bool
}

// parseArgs splits one positional template path from the flags.
func parseArgs(args []string) (*options, error) {
	opts := &options{}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-m":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-m requires a manifest path")
			}
			opts.manifestPath = args[i+1]
			i += 2
		case "-b":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-b requires a bindings path")
			}
			opts.bindingsPath = args[i+1]
			i += 2
		case "-B":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-B requires a bindings path")
			}
			opts.secondPath = args[i+1]
			i += 2
		case "-minify":
			opts.minify = true
			i++
		default:
			if opts.templatePath != "" {
				return nil, fmt.Errorf("unexpected argument %q", args[i])
			}
			opts.templatePath = args[i]
			i++
		}
	}
	if opts.templatePath == "" {
		return nil, fmt.Errorf("a template path is required")
	}
	return opts, nil
}

// compileTemplate loads the manifest (when given) and compiles the
// template, printing any declarative warnings.
func compileTemplate(opts *options) (*livemarkup.Template, error) {
	source, err := os.ReadFile(opts.templatePath)
	if err != nil {
		return nil, err
	}

	var compileOpts []livemarkup.Option
	var manifestWarnings []livemarkup.Warning
	if opts.manifestPath != "" {
		m, err := manifest.Load(opts.manifestPath)
		if err != nil {
			return nil, err
		}
		reg, warnings, err := manifest.BuildRegistry(opts.manifestPath, m)
		if err != nil {
			return nil, err
		}
		manifestWarnings = warnings
		compileOpts = append(compileOpts, livemarkup.WithComponents(reg))
	}
	if opts.minify {
		compileOpts = append(compileOpts, livemarkup.WithMinify())
	}

	tmpl, err := livemarkup.Compile(opts.templatePath, string(source), compileOpts...)
	if err != nil {
		return nil, err
	}
	printWarnings(append(manifestWarnings, tmpl.Warnings()...))
	return tmpl, nil
}

func printWarnings(warnings []livemarkup.Warning) {
	for _, w := range warnings {
		fmt.Println(warnStyle.Render("warning: ") + w.String())
	}
}

// loadBindings reads a JSON bindings file. A missing path means empty
// bindings.
func loadBindings(path string) (livemarkup.Bindings, error) {
	if path == "" {
		return livemarkup.Bindings{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bindings livemarkup.Bindings
	if err := json.Unmarshal(data, &bindings); err != nil {
		return nil, fmt.Errorf("parse bindings %s: %w", path, err)
	}
	return bindings, nil
}
