package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/simorq_settlement/cmd/http"
	settlementcmd "github.com/Alijeyrad/simorq_settlement/cmd/settlement"
	systemcmd "github.com/Alijeyrad/simorq_settlement/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "simorq",
	Short: "Simorq session settlement engine.",
	Long: `Simorq settlement turns a completed paid session into a balanced pair of
ledger entries: the payer is charged the base amount plus tax, the payee is
credited the base amount less platform commission and withholding tax.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
	rootCmd.AddCommand(settlementcmd.NewSettlementCommand())
}
