package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"anchorwatch/gnss"
	"anchorwatch/server"
	"anchorwatch/web"
)

func main() {
	configPath := flag.String("config", "anchorwatch.yaml", "Config file path")
	replayPath := flag.String("replay", "", "Replay an NMEA log instead of reading the serial port")
	replaySpeed := flag.Float64("speed", 1.0, "Replay speed multiplier (0 = as fast as possible)")
	listen := flag.String("listen", "", "Override HTTP listen address")
	port := flag.String("port", "", "Override serial port")
	flag.Parse()

	cfg := server.LoadConfig(*configPath)
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := server.NewSession(cfg)
	defer session.Close()

	webSrv := web.New(session, cfg.Server.ListenAddr)
	session.AddSink(webSrv)

	if cfg.MQTT.Enabled {
		pub, err := server.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			fmt.Printf("mqtt: %v\n", err)
			os.Exit(1)
		}
		defer pub.Close()
		session.AddSink(pub)
	}

	go func() {
		if err := webSrv.Run(ctx); err != nil {
			log.Printf("[web] server error: %v", err)
			stop()
		}
	}()

	if *replayPath != "" {
		r := &gnss.Replayer{Path: *replayPath, Speed: *replaySpeed}
		if err := r.Run(ctx, session.HandleReport); err != nil && ctx.Err() == nil {
			fmt.Printf("replay: %v\n", err)
			os.Exit(1)
		}
		// Keep serving the result until interrupted.
		<-ctx.Done()
		return
	}

	var recorder *gnss.Recorder
	if cfg.Serial.RecordPath != "" {
		var err error
		recorder, err = gnss.NewRecorder(cfg.Serial.RecordPath)
		if err != nil {
			fmt.Printf("recorder: %v\n", err)
			os.Exit(1)
		}
		defer recorder.Close()
	}

	reader := gnss.NewSerialReader(gnss.SerialConfig{
		Port: cfg.Serial.Port,
		Baud: cfg.Serial.Baud,
	}, recorder)
	if err := reader.Connect(); err != nil {
		fmt.Printf("serial: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	if err := reader.Run(ctx, session.HandleReport); err != nil && ctx.Err() == nil {
		fmt.Printf("serial: %v\n", err)
		os.Exit(1)
	}
}
