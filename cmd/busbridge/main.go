package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/instrbus/pkg/bridge/mqtt"
	"github.com/robotalks/instrbus/pkg/bus/transport/websocket"
	"github.com/robotalks/instrbus/pkg/env"
	"github.com/robotalks/instrbus/pkg/framework"
)

var (
	serveLine string
)

func init() {
	env.SetupFlags(flag.CommandLine)
	flag.StringVar(&serveLine, "serve-line", serveLine, "Serve the raw serial line over websocket on this address instead of bridging to MQTT.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig()
	if serveLine != "" {
		serveRawLine(conf)
		return
	}

	e := conf.MustNewEnv()
	queue, err := mqtt.NewQueueFromURL(conf.MQTTBrokerURL, "instrbus:"+conf.NodeID)
	if err != nil {
		log.Fatalf("invalid MQTT broker URL: %v", err)
	}
	bridge := mqtt.NewBridge(queue, e.Session, conf.NodeID)
	bridge.SenderCategory, bridge.SenderAddress = e.Category, e.Address
	glog.Infof("bridging %s to %s as %q", conf.Port, conf.MQTTBrokerURL, conf.NodeID)

	runner := framework.NewRunner().HandleSignals()
	runner.Go(e, bridge)
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}

func serveRawLine(conf *env.Config) {
	if conf.IsRemote() {
		log.Fatalln("serve-line requires a local serial port")
	}
	port, err := conf.OpenTransport()
	if err != nil {
		log.Fatalln(err)
	}
	defer port.Close()
	server := &http.Server{Addr: serveLine, Handler: websocket.Handler(port)}
	glog.Infof("serving %s on ws://%s/", conf.Port, serveLine)

	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun("line-server", framework.RunFunc(func(ctx context.Context) error {
		return framework.RunWithContextCloser(ctx, server, server.ListenAndServe)
	})))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
