package commands

import (
	"encoding/json"
	"fmt"

	"github.com/livefir/livemarkup"
)

// Diff renders a template against two binding sets and prints the patch
// taking a client from the first to the second.
func Diff(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.bindingsPath == "" || opts.secondPath == "" {
		return fmt.Errorf("diff requires -b <before.json> and -B <after.json>")
	}
	tmpl, err := compileTemplate(opts)
	if err != nil {
		return err
	}
	before, err := loadBindings(opts.bindingsPath)
	if err != nil {
		return err
	}
	after, err := loadBindings(opts.secondPath)
	if err != nil {
		return err
	}

	view := tmpl.NewView()
	if _, err := view.Update(before, nil); err != nil {
		return err
	}
	patch, err := view.Update(after, livemarkup.DiffBindings(before, after))
	if err != nil {
		return err
	}

	if patch.Empty() {
		fmt.Println(okStyle.Render("no changes") + " (empty patch, nothing sent)")
		return nil
	}
	out, err := json.MarshalIndent(patch, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render("patch"))
	fmt.Println(string(out))
	return nil
}
