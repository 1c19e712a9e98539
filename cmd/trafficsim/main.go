package main

import (
	"encoding/base64"
	"flag"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/kotkaro/trafficsim/api"
	"github.com/kotkaro/trafficsim/engine"
	"github.com/kotkaro/trafficsim/replay"
	"github.com/kotkaro/trafficsim/utils/config"
)

var (
	configPath = flag.String("config", "", "config file path")
	configData = flag.String("config-data", "", "config file base64 encoded data")
	steps      = flag.Int("steps", 0, "number of steps to run (0 runs until killed)")
	listenAddr = flag.String("listen", "", "websocket live-stream address (empty disables it)")

	logLevels = map[string]logrus.Level{
		"trace": logrus.TraceLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"off":   logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "log level: trace debug info warn error off")

	log = logrus.WithField("module", "trafficsim")
)

func main() {
	flag.Parse()
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	cfg := loadConfig()
	log.Infof("%+v", cfg)

	e, err := engine.New(cfg)
	if err != nil {
		log.Panicf("engine init failed: %v", err)
	}
	defer e.Close()

	control := api.New(e, cfg.Seed)

	if cfg.RoadnetLogFile != "" {
		f, err := os.Create(cfg.RoadnetLogFile)
		if err != nil {
			log.Panicf("roadnet log create failed: %v", err)
		}
		if err := e.RoadNet().DumpLog(f); err != nil {
			log.Errorf("roadnet log dump failed: %v", err)
		}
		f.Close()
	}

	if cfg.SaveReplay && cfg.ReplayLogFile != "" {
		f, err := os.Create(cfg.ReplayLogFile)
		if err != nil {
			log.Panicf("replay log create failed: %v", err)
		}
		defer f.Close()
		w := replay.New(e.RoadNet(), f)
		defer w.Close()
		control.SetReplayLogging(true, w)
	}

	var server *api.Server
	if *listenAddr != "" {
		server = api.NewServer(*listenAddr, control)
		go func() {
			if err := server.Serve(); err != nil {
				log.Errorf("live-stream server stopped: %v", err)
			}
		}()
	}

	run(control, server)
}

// loadConfig accepts either a config file path or base64-encoded config
// data, loading either into this module's own config.Config.
func loadConfig() *config.Config {
	var data []byte
	var err error
	switch {
	case *configPath != "":
		data, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	case *configData != "":
		data, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	default:
		log.Panic("config file or config data must be specified")
	}

	var cfg config.Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		log.Panicf("config parse err: %v", err)
	}
	return &cfg
}

func run(control *api.Control, server *api.Server) {
	for i := 0; *steps <= 0 || i < *steps; i++ {
		control.Step()
		if server != nil {
			server.Publish()
		}
	}
	log.Infof("finished at step %d, average travel time %.2fs", control.Engine().Clock().Step, control.Engine().AverageTravelTime())
}
