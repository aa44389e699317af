package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/AnyUserName/refblend/internal/report"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <report_path>",
	Short: "Validate a refblend report and check the frames it lists",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	r, path, err := report.Read(args[0])
	if err != nil {
		return err
	}

	errors := report.Validate(r, filepath.Dir(path))
	if len(errors) == 0 {
		fmt.Println("  ✓ Report is valid")
		fmt.Printf("  ✓ %d frames, %d blocks, all files present and matching\n", r.Stats.TotalFrames, r.Stats.TotalBlocks)
		return nil
	}

	fmt.Printf("  ✗ Report has %d error(s):\n", len(errors))
	for _, e := range errors {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errors))
}
