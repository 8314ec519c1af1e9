// Command agentworker is the ephemeral per-job process: it runs inside
// exactly one Kubernetes Job, decodes the envelope it was handed, clones
// the target repository, and invokes the coding agent once.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/globalcomix/claude-agent/pkg/worker"
)

func main() {
	cfg, err := worker.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "agentworker:", err)
		os.Exit(1)
	}

	os.Exit(worker.Run(context.Background(), cfg))
}
