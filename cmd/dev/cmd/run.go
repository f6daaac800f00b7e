package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// RunCmd runs the cli from source against the simulated sensor unless another
// adapter is given.
func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [-- cli arguments]",
		Short: "Run the mcp9808 cli from source",
		Example: `  dev run -- info --format yaml
  dev run --adapter mcp2221 -- set 18`,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := cmd.Flags().GetString("adapter")
			if err != nil {
				return fmt.Errorf("could not get adapter flag: %w", err)
			}
			if len(args) == 0 {
				args = []string{"info"}
			}
			goArgs := append([]string{"run", mainPkg, "--adapter", adapter}, args...)
			return execute("go", goArgs...)
		},
	}
	cmd.Flags().String("adapter", "sim", "bus transport passed to the cli")
	return cmd
}

func execute(name string, args ...string) error {
	slog.Info("running", "cmd", name, "args", args)
	c := exec.Command(name, args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Stdin = os.Stdin
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
