package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/doeshing/calltrail/internal/infrastructure/cli"
)

func main() {
	ctx := context.Background()
	opts := cli.Options{
		Verbose:    isVerbose(),
		ConfigPath: configPathFromArgs(os.Args[1:]),
	}

	root, closeFn, err := cli.NewRootCmd(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	runErr := root.ExecuteContext(ctx)
	if err := closeFn(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "error:", runErr)
		os.Exit(1)
	}
}

func isVerbose() bool {
	return strings.EqualFold(os.Getenv("CALLTRAIL_DEBUG"), "1") || strings.EqualFold(os.Getenv("CALLTRAIL_DEBUG"), "true")
}

// configPathFromArgs finds --config before cobra parses flags, because the
// container is built from it ahead of command dispatch.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
