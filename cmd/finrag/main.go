package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/config"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "finrag",
		Short:         "Question answering over indexed annual reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config file")
	root.AddCommand(newIndexCmd(), newAnswerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and initializes the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Development); err != nil {
		return nil, err
	}
	return cfg, nil
}
