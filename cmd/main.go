package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile    string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Live recognition and attendance view",
	Long: `rollcall samples a camera while a session is open, sends frames to a
recognition service and merges the results with the attendance log feed
into one live view served over HTTP.

Without a subcommand it runs the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides ROLLCALL_CONFIG)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load(envFile)
	if configFile != "" {
		_ = os.Setenv("ROLLCALL_CONFIG", configFile)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
