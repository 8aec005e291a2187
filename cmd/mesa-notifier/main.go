// mesa-notifier serves the administrator notification API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mjappgame/mesa/internal/config"
	"github.com/mjappgame/mesa/internal/notify"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "", "Path to a YAML configuration file")
	flagAddr   = flag.String("addr", "", "Address to listen on (default: notify.listen_addr)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		klog.Exit(err)
	}
	addr := cfg.Notify.ListenAddr
	if *flagAddr != "" {
		addr = *flagAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := notify.NewService(cfg.Notify, nil)
	started := make(chan string, 1)
	go func() {
		addr := <-started
		st := svc.Status()
		fmt.Printf("Mesa notifier listening on http://%s (providers: %v)\n", addr, st.Providers)
	}()

	if err := notify.Run(ctx, addr, svc, started); err != nil {
		klog.Exit(err)
	}
}
