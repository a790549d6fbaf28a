package logutils

import (
	"flag"
	"strconv"

	"github.com/go-logr/logr"
	"gopkg.in/natefinch/lumberjack.v2"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/pkg/config"
)

// Setup configures klog from the log section of the config. When a file is
// set, output goes to a lumberjack rotated file instead of stderr.
func Setup(conf *config.Config) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	_ = fs.Set("v", strconv.Itoa(conf.Log.Verbosity))

	if conf.Log.File != "" {
		_ = fs.Set("logtostderr", "false")
		_ = fs.Set("alsologtostderr", strconv.FormatBool(config.IsDebugMode()))
		klog.SetOutput(&lumberjack.Logger{
			Filename:   conf.Log.File,
			MaxSize:    conf.Log.MaxSizeMB,
			MaxBackups: conf.Log.MaxBackups,
			MaxAge:     conf.Log.MaxAgeDays,
			Compress:   true,
		})
	}
}

// Named returns a logr logger backed by klog, for long lived workers.
func Named(name string) logr.Logger {
	return klog.NewKlogr().WithName(name)
}
