package main

import (
	"log"
	"os"
	"path"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pjones/elm327diag/obd"
)

const deviceSettingName string = "device"

// Compiled-in defaults, overridable through the config file or flags.
const (
	defaultDeviceName = "/dev/pts/8"
	defaultOutputFile = "carstats.csv"
	defaultTimeoutMS  = 3000
)

var configFile string
var device string
var outputFile string
var timeoutMS int
var simulate bool
var noInit bool
var quiet bool
var verbose bool

func init() {
	cobra.OnInitialize(func() {
		initConfig()
		presetRequiredFlags(rootCmd)
		postInitCommands(rootCmd.Commands())
	})

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.elm327diag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&device, deviceSettingName, "d", defaultDeviceName, "serial device the ELM327 interface is attached to. Example: /dev/ttyUSB0")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "quiet all log output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "provide verbose output")

	rootCmd.Flags().StringVarP(&outputFile, "file", "f", defaultOutputFile, "file the report is written to")
	rootCmd.Flags().IntVar(&timeoutMS, "timeout", defaultTimeoutMS, "per-query response timeout in milliseconds")
	rootCmd.Flags().BoolVar(&simulate, "simulate", false, "report from a built-in fake interface instead of real hardware")
	rootCmd.Flags().BoolVar(&noInit, "no-init", false, "skip the AT initialization sequence")
}

func main() {
	rootCmd.SetOut(os.Stdout)

	if usageOnBareInvocation(os.Args) {
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// usageOnBareInvocation prints the usage block when the program is run with
// no arguments at all. At least one argument has always been required.
func usageOnBareInvocation(args []string) bool {
	if len(args) >= 2 {
		return false
	}
	rootCmd.Usage()
	return true
}

var rootCmd = &cobra.Command{
	Use:   "elm327diag",
	Short: "Diagnostics utility for ELM327 devices",
	Long: `elm327diag interfaces with ELM327 serial devices which can read
diagnostic data through a vehicle's OBD-II port, and writes the gathered
values to a report file.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runReport,
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		cmd.Println(err)
		cmd.Usage()
		os.Exit(1)
		return err
	})
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(path.Base(configFile))
		viper.AddConfigPath(path.Dir(configFile))
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Fatalf("finding home directory: %v\n", err)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".elm327diag")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if err = viper.SafeWriteConfig(); err != nil {
				log.Fatalf("creating config file: %v\n", err)
			}
		} else {
			log.Fatalf("reading config file: %v\n", err)
		}
	}
}

func postInitCommands(commands []*cobra.Command) {
	for _, cmd := range commands {
		presetRequiredFlags(cmd)
		if cmd.HasSubCommands() {
			postInitCommands(cmd.Commands())
		}
	}
}

func presetRequiredFlags(cmd *cobra.Command) {
	viper.BindPFlags(cmd.Flags())
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if viper.IsSet(f.Name) && viper.GetString(f.Name) != "" {
			cmd.Flags().Set(f.Name, viper.GetString(f.Name))
		}
	})
}

func diagLogger(cmd *cobra.Command) obd.Logger {
	if !verbose {
		return obd.NopLogger
	}
	return obd.DefaultLogger(cmd.OutOrStdout())
}
