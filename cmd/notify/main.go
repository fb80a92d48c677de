package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/cmd/notify/ioc"
	"gopkg.in/yaml.v2"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	f, err := os.Open(*configPath)
	if err != nil {
		elog.Panic("open config", elog.FieldErr(err))
	}
	if err := econf.LoadFromReader(f, yaml.Unmarshal); err != nil {
		elog.Panic("load config", elog.FieldErr(err))
	}
	_ = f.Close()

	app := ioc.InitApp()
	app.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		elog.Error("shutdown", elog.FieldErr(err))
	}
	elog.Info("stopped")
}
