// File: cmd/l3routerd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "l3routerd: %v\n", err)
		os.Exit(1)
	}
}
