/*jetbake bakes fluid simulations into a directory of per-frame particle and
surface files. Run "jetbake example-config" for an annotated configuration
file.
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(GetExitCode(err))
	}
}
