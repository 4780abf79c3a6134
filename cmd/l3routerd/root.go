// File: cmd/l3routerd/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momentics/l3router/control"
	"github.com/momentics/l3router/facade"
)

var (
	cfgFile     string
	network     string
	netmask     string
	address     string
	peerAddress string
	device      string
	port        int
	connectAddr string
	numWorkers  int
	numaNode    int
)

var rootCmd = &cobra.Command{
	Use:   "l3routerd",
	Short: "l3routerd is a user-space IPv4 tunnel router",
	Long: `l3routerd multiplexes a TUN device and a set of TCP peers through a
single readiness-driven forwarding router.

Examples:
  l3routerd --device tun0 --network 10.0.0.0 --netmask 255.255.255.0 --address 10.0.0.1 --port 8080
  l3routerd --connect 203.0.113.5:8080
`,
	RunE: runEngine,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: none, flags only)")
	flags.StringVar(&network, "network", "", "tunnel network address, informational")
	flags.StringVar(&netmask, "netmask", "255.255.255.0", "netmask applied to the TUN device")
	flags.StringVar(&address, "address", "", "local IPv4 address assigned to the TUN device")
	flags.StringVar(&peerAddress, "peer-address", "", "remote peer's tunnel IPv4 address, for a point-to-point link")
	flags.StringVar(&device, "device", "tun0", "TUN device name")
	flags.IntVar(&port, "port", 8080, "TCP port to listen on for inbound peers")
	flags.StringVar(&connectAddr, "connect", "", "dial this host:port instead of listening (client mode)")
	flags.IntVar(&numWorkers, "workers", 4, "background executor worker count")
	flags.IntVar(&numaNode, "numa-node", -1, "preferred NUMA node, -1 for none")

	viper.BindPFlags(flags)
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "l3routerd: config read failed: %v\n", err)
		return
	}
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		control.TriggerHotReload()
	})
}

func runEngine(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := &facade.Config{
		Device:        viper.GetString("device"),
		Network:       viper.GetString("network"),
		Netmask:       viper.GetString("netmask"),
		Address:       viper.GetString("address"),
		PeerAddress:   viper.GetString("peer-address"),
		ListenAddr:    fmt.Sprintf(":%d", viper.GetInt("port")),
		ConnectAddr:   viper.GetString("connect"),
		NumWorkers:    viper.GetInt("workers"),
		NUMANode:      viper.GetInt("numa-node"),
		MaxConcurrent: 32,
		WaitTimeoutMs: 100,
	}

	engine, err := facade.New(cfg)
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	control.RegisterReloadHook(func() {
		log.Info("configuration reload signaled")
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		if err := engine.Shutdown(); err != nil {
			log.WithError(err).Warn("shutdown reported an error")
		}
	}()

	if cfg.ConnectAddr != "" {
		if err := engine.ConnectTCP(cfg.ConnectAddr); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	} else {
		go func() {
			if err := engine.ListenTCP(); err != nil {
				log.WithError(err).Error("tcp listener stopped")
			}
		}()
	}

	log.WithField("device", cfg.Device).Info("router engine starting")
	return engine.Run()
}
