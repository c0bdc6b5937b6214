// vbisamdump prints a table's dictionary/index snapshot as JSON.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jpl-au/vbisam"
)

func main() {
	doRecover := flag.Bool("recover", false, "roll back incomplete transactions before dumping")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vbisamdump [-recover] <table-base-path>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	if *doRecover {
		n, err := isam.Recover(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "recover:", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "recovered %d incomplete transaction(s)\n", n)
	}

	t, err := isam.Open(path, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer t.Close()

	if err := t.Dump(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "dump:", err)
		os.Exit(1)
	}
}
