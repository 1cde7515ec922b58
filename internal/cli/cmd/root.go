package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "csvflow",
		Short: "CSV Pipeline Workflow CLI",
		Long:  color.CyanString(`CSV Pipeline Workflow - Load delimited files into data stores with ease`),
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	viper.SetEnvPrefix("CSVFLOW")
	// Nested keys like postgres.host map to CSVFLOW_POSTGRES_HOST.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("csvflow")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
