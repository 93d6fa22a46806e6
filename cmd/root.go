package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"retailworks/internal/config"
)

// bindFlags exposes a command's flags through viper so they can also
// be set with RETAILWORKS_* environment variables.
func bindFlags(fs *pflag.FlagSet) {
	_ = viper.BindPFlags(fs)
}

var (
	cfgFile     string
	environment string

	rootCmd = &cobra.Command{
		Use:   "retailworks",
		Short: "Deploy the RetailWorks warehouse to Snowflake",
		Long: `RetailWorks - deployment and data loading toolkit for the
RetailWorks Snowflake data warehouse.

It deploys schema DDL per environment, stages sample CSV data,
runs the ETL pipeline into the analytics dimensions, and can roll
a schema back to an earlier clone.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.retailworks/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&environment, "environment", "e", "dev", "target environment (dev, test, prod)")
	_ = viper.BindPFlag("environment", rootCmd.PersistentFlags().Lookup("environment"))
}

func initConfig() {
	if cfgFile != "" {
		// config.Load resolves the file through this variable
		os.Setenv("RETAILWORKS_CONFIG", cfgFile)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(config.GetConfigPath())

	viper.SetEnvPrefix("RETAILWORKS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// missing config is fine, commands validate what they need
	}
}
