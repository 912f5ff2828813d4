package commands

import (
	"fmt"
)

// Compile compiles a template and reports its static/dynamic shape.
func Compile(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	tmpl, err := compileTemplate(opts)
	if err != nil {
		fmt.Println(errorStyle.Render("compile failed"))
		return err
	}

	fmt.Println(headerStyle.Render(tmpl.Name()))
	fmt.Printf("fingerprint: %s\n", dimStyle.Render(fmt.Sprintf("%016x", tmpl.Fingerprint())))

	if len(tmpl.Warnings()) == 0 {
		fmt.Println(okStyle.Render("ok") + " no warnings")
	} else {
		fmt.Printf("%d warning(s)\n", len(tmpl.Warnings()))
	}
	return nil
}
