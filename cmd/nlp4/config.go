package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-nlp4/internal/logger"
	"github.com/robert-malhotra/go-nlp4/nlp4"
)

// Config represents the nlp4 configuration file (~/.config/nlp4/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	LoadPolicy string `yaml:"load_policy"`
	Workers    *int   `yaml:"workers"`
	Mmap       *bool  `yaml:"mmap"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nlp4", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// settings are the resolved global options shared by every subcommand.
type settings struct {
	config  Config
	policy  nlp4.LoadPolicy
	workers int
	mmap    bool
	log     logger.Logger
}

type settingsKey struct{}

// setup resolves flags against the config file and stores the result and
// the logger in the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig(cmd.String("config"))
	if err != nil {
		return ctx, err
	}

	s, err := resolve(cmd, cfg, cmd.Root().ErrWriter)
	if err != nil {
		return ctx, err
	}
	ctx = logger.WithContext(ctx, s.log)
	return context.WithValue(ctx, settingsKey{}, s), nil
}

// resolve applies config file values to every flag not set explicitly.
func resolve(cmd *cli.Command, cfg Config, logOut io.Writer) (*settings, error) {
	policyName := cmd.String("policy")
	if cfg.LoadPolicy != "" && !cmd.IsSet("policy") {
		policyName = cfg.LoadPolicy
	}
	policy, err := nlp4.ParseLoadPolicy(policyName)
	if err != nil {
		return nil, err
	}

	workers := cmd.Int("workers")
	if cfg.Workers != nil && !cmd.IsSet("workers") {
		workers = *cfg.Workers
	}

	mmap := cmd.Bool("mmap")
	if cfg.Mmap != nil && !cmd.IsSet("mmap") {
		mmap = *cfg.Mmap
	}

	level := cmd.String("log-level")
	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		level = cfg.LogLevel
	}
	format := cmd.String("log-format")
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		format = cfg.LogFormat
	}
	if logOut == nil {
		logOut = os.Stderr
	}

	var log logger.Logger
	switch format {
	case "json":
		log = logger.JSON(logOut, logger.ParseLevel(level))
	case "text", "":
		log = logger.Text(logOut, logger.ParseLevel(level))
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return &settings{
		config:  cfg,
		policy:  policy,
		workers: workers,
		mmap:    mmap,
		log:     log,
	}, nil
}

func settingsFrom(ctx context.Context) *settings {
	if s, ok := ctx.Value(settingsKey{}).(*settings); ok {
		return s
	}
	return &settings{policy: nlp4.LoadAll, workers: 1, log: logger.FromContext(ctx)}
}

// options returns the open options for path, overriding the load policy
// when policy is non-nil.
func (s *settings) options(path string, policy *nlp4.LoadPolicy) []nlp4.Option {
	p := s.policy
	if policy != nil {
		p = *policy
	}
	opts := []nlp4.Option{
		nlp4.WithLoadPolicy(p),
		nlp4.WithWorkers(s.workers),
		nlp4.WithLogger(s.log),
		nlp4.WithProgress(progressLogger(s.log.With("path", path), time.Second)),
	}
	if s.mmap {
		opts = append(opts, nlp4.WithMmap())
	}
	return opts
}

// progressLogger logs decode progress at most once per interval, plus the
// first and the final update.
func progressLogger(log logger.Logger, interval time.Duration) func(done, total int) {
	every := rate.Sometimes{First: 1, Interval: interval}
	return func(done, total int) {
		if done == total {
			log.Info("frames decoded", "done", done, "total", total)
			return
		}
		every.Do(func() {
			log.Info("decoding frames", "done", done, "total", total)
		})
	}
}
