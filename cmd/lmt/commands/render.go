package commands

import (
	"os"
)

// Render renders a template against a bindings file and prints the HTML.
func Render(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	tmpl, err := compileTemplate(opts)
	if err != nil {
		return err
	}
	bindings, err := loadBindings(opts.bindingsPath)
	if err != nil {
		return err
	}
	return tmpl.Execute(os.Stdout, bindings)
}
