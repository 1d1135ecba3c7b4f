package main

import (
	"fmt"
	"os"
	"time"

	"github.com/warp/action-tracker/cli"
)

func main() {
	if err := cli.RootCmd(time.Now).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
