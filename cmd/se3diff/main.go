// Command se3diff samples, evaluates and inspects SE(3) pose diffusion runs.
package main

import (
	"context"

	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(NewCLI().ExecuteContext(context.Background()))
}
