package command

import (
	"fmt"
	"os"

	"github.com/lagoon-network/lagoon/src/config"
	"github.com/lagoon-network/lagoon/src/lagoon"
	"github.com/lagoon-network/lagoon/src/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	conf        *config.Config
	datadir     *string
	showVersion *bool
)

func init() {
	conf = config.NewDefaultConfig()

	cobra.OnInitialize(initConfig)

	// Base datadir
	datadir = rootCmd.PersistentFlags().StringP("datadir", "d", conf.DataDir, "Base configuration directory")

	// Listen addresses
	rootCmd.PersistentFlags().StringP("listen", "l", conf.BindAddr, "Listen IP:Port for the head transport")
	rootCmd.PersistentFlags().StringP("service-listen", "s", conf.ServiceAddr, "HTTP service listen IP:Port")
	rootCmd.PersistentFlags().Bool("no-service", conf.NoService, "Disable the HTTP service")

	// Various
	rootCmd.PersistentFlags().Bool("store", conf.Store, "Use badgerDB instead of the flat-file journal")
	rootCmd.PersistentFlags().String("log", conf.LogLevel, "Log level (debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().String("log-file", conf.LogFile, "Duplicate log output to a file")
	rootCmd.PersistentFlags().String("moniker", conf.Moniker, "Friendly name of this node")

	// Head configuration
	rootCmd.PersistentFlags().String("network", conf.Network, "Base chain: devnet, testnet or mainnet")
	rootCmd.PersistentFlags().Duration("contestation-period", conf.ContestationPeriod, "Contestation period")
	rootCmd.PersistentFlags().Duration("slot-length", conf.SlotLength, "Base chain slot length")
	rootCmd.PersistentFlags().Int("window", conf.Window, "Number of retained chain states for rollback")
	rootCmd.PersistentFlags().String("seed-input", conf.SeedInput, "Output reference funding the init transaction")

	// Node configuration
	rootCmd.PersistentFlags().DurationP("timeout", "t", conf.TCPTimeout, "TCP timeout")
	rootCmd.PersistentFlags().Duration("ping", conf.PingInterval, "Peer liveness ping interval")
	rootCmd.PersistentFlags().Int("queue-capacity", conf.QueueCapacity, "Event queue capacity")
	rootCmd.PersistentFlags().Int("wait-depth", conf.WaitDepth, "Max parked waiting events")
	rootCmd.PersistentFlags().Int("wait-retries", conf.WaitRetries, "Max wait retries per event")

	// Version
	showVersion = rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version and exit")
}

func initConfig() {
	viper.AddConfigPath(*datadir)
	viper.SetConfigName("lagoon")

	viper.BindPFlags(rootCmd.PersistentFlags())

	if err := viper.ReadInConfig(); err != nil {
		conf.Logger().Warn(err, ". Taking cli or default.")
	}

	if err := viper.Unmarshal(conf); err != nil {
		conf.Logger().Warn(err, ". Taking cli or default.")
	}

	conf.SetDataDir(*datadir)
}

var rootCmd = &cobra.Command{
	Use:   "lagoon",
	Short: "Lagoon layer-2 head node",
	Long:  "Lagoon layer-2 state-channel head node",
	Run: func(cmd *cobra.Command, args []string) {
		if *showVersion {
			fmt.Println(version.Version)

			return
		}

		logger := conf.Logger()

		logger.WithFields(logrus.Fields{
			"datadir":             conf.DataDir,
			"listen":              conf.BindAddr,
			"service-listen":      conf.ServiceAddr,
			"store":               conf.Store,
			"network":             conf.Network,
			"contestation-period": conf.ContestationPeriod,
			"log":                 conf.LogLevel,
		}).Debug("RUN")

		engine := lagoon.NewLagoon(conf)

		if err := engine.Init(); err != nil {
			logger.Error("Cannot initialize engine:", err)

			os.Exit(1)
		}

		engine.Run()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)

		os.Exit(1)
	}
}
