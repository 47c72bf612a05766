// detect.go implements "concierge detect", printing the reply language for a text.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/travel-concierge/internal/language"
)

var detectCmd = &cobra.Command{
	Use:   "detect <text>",
	Short: "Print the language a message would be answered in",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	detector := language.NewDetector(nil, log)
	fmt.Fprintln(cmd.OutOrStdout(), detector.Detect(strings.Join(args, " ")))
	return nil
}
