package cmd

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mmonsif/aeroconnect/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aeroconnect",
	Short: "AeroConnect ground operations portal API",
	Long: `AeroConnect serves the ground operations portal: tasks, safety reports,
leave requests, messaging, the forum and documents, each kept in sync per
session through the store's change feed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️  No .env file found, using system environment variables")
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment variables take precedence)")
}
