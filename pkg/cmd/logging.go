package cmd

import (
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/lab47/provision/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newLogger(cfg *config.Config, debug bool) (hclog.Logger, error) {
	level := hclog.LevelFromString(cfg.LogLevel)
	if debug {
		level = hclog.Trace
	}

	var out io.Writer = os.Stderr

	if cfg.LogFile != "" {
		err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755)
		if err != nil {
			return nil, err
		}

		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   filepath.ToSlash(cfg.LogFile),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	L := hclog.New(&hclog.LoggerOptions{
		Name:   "provision",
		Level:  level,
		Output: out,
	})

	hclog.SetDefault(L)

	return L, nil
}
