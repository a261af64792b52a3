package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tofslices/pkg/config"
	"tofslices/pkg/dataset"
	"tofslices/pkg/transform"
)

type globalOptions struct {
	configPath string
	root       string
	testMode   bool
	verbose    bool
}

type commandContext struct {
	opts   *globalOptions
	cfg    *config.Config
	logger *logrus.Logger
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

// config loads the configuration file once and applies flag overrides
func (c *commandContext) config(cmd *cobra.Command) (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.LoadConfig(c.opts.configPath)
	if err != nil {
		return nil, err
	}
	if c.opts.root != "" {
		cfg.Dataset.Root = c.opts.root
	}
	if cmd.Flags().Changed("test") {
		cfg.Dataset.TestMode = c.opts.testMode
	}
	if c.opts.verbose {
		cfg.Output.Verbose = true
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) log() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: !isTerminal(os.Stderr),
		})
		c.logger.SetLevel(logrus.InfoLevel)
		if c.cfg != nil && c.cfg.Output.Verbose {
			c.logger.SetLevel(logrus.DebugLevel)
		}
	}
	return c.logger
}

// openDataset scans the configured root
func (c *commandContext) openDataset(cmd *cobra.Command) (*dataset.Dataset, error) {
	cfg, err := c.config(cmd)
	if err != nil {
		return nil, err
	}
	logger := c.log()
	// the nifti package logs through the standard logger
	logrus.SetLevel(logger.GetLevel())

	opts := []dataset.Option{
		dataset.WithLogger(logger),
		dataset.WithSlicesPerSubject(cfg.Dataset.SlicesPerSubject),
	}
	if cfg.Dataset.HeaderSliceCounts {
		opts = append(opts, dataset.WithHeaderSliceCounts())
	}
	if cfg.Dataset.Seed != 0 {
		opts = append(opts, dataset.WithSeed(cfg.Dataset.Seed))
	}

	ds, err := dataset.New(cfg.Dataset.Root, transformFromConfig(cfg), cfg.Dataset.TestMode, opts...)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	return ds, nil
}

// transformFromConfig builds the configured transform, or nil when none is set
func transformFromConfig(cfg *config.Config) transform.Transform {
	var tfs transform.Compose
	if cfg.Transform.CropHeight > 0 && cfg.Transform.CropWidth > 0 {
		tfs = append(tfs, transform.RandomCrop{Height: cfg.Transform.CropHeight, Width: cfg.Transform.CropWidth})
	}
	if cfg.Transform.FlipProbability > 0 {
		tfs = append(tfs, transform.RandomFlip{P: cfg.Transform.FlipProbability})
	}
	if len(tfs) == 0 {
		return nil
	}
	return tfs
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
