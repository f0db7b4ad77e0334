// Command mp4recorderd wires a live RTP/H.264+AAC source into a
// crash-recoverable MP4 recording session: it watches a storage root
// for sessions left behind by a previous crash, recovers them, then
// opens a new session and depacketizes incoming RTP packets into it
// until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	mp4recorder "mp4recorder"
	"mp4recorder/pkg/reclog"
	"mp4recorder/pkg/recoverywatch"
	"mp4recorder/pkg/rtpsource"
	"mp4recorder/pkg/statusfeed"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a recorder config YAML file (defaults built in if omitted)")
	storageRoot := flag.String("storage-root", ".", "directory recordings are written into and scanned for crashed sessions")
	videoAddr := flag.String("video-addr", "127.0.0.1:5004", "UDP address to receive RTP/H.264 packets on")
	audioAddr := flag.String("audio-addr", "127.0.0.1:5006", "UDP address to receive RTP/AAC packets on")
	statusAddr := flag.String("status-addr", "127.0.0.1:8095", "address to serve the live status websocket on")
	logDBPath := flag.String("log-db", "", "path to a bbolt database for durable log persistence (disabled if omitted)")
	flag.Parse()

	cfg := mp4recorder.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = mp4recorder.LoadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	logger := reclog.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *logDBPath != "" {
		store := reclog.NewStore(*logDBPath)
		if err := store.Open(); err != nil {
			return fmt.Errorf("open log store: %w", err)
		}
		defer store.Close()
		go store.Run(ctx, logger)
	}

	go http.ListenAndServe(*statusAddr, statusfeed.Handler(logger)) //nolint:errcheck

	watcher := recoverywatch.New(*storageRoot, logger)
	watcherStop := make(chan struct{})
	go func() {
		if err := watcher.Run(watcherStop); err != nil {
			logger.Error().Src("main").Msgf("recovery watcher stopped: %v", err)
		}
	}()
	defer close(watcherStop)

	videoConn, err := net.ListenPacket("udp", *videoAddr)
	if err != nil {
		return fmt.Errorf("listen video: %w", err)
	}
	defer videoConn.Close()

	audioConn, err := net.ListenPacket("udp", *audioAddr)
	if err != nil {
		return fmt.Errorf("listen audio: %w", err)
	}
	defer audioConn.Close()

	sessionPath := filepath.Join(*storageRoot, sessionFileName(time.Now()))
	recorder := mp4recorder.New(logger)
	if err := recorder.Start(sessionPath, cfg); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	session := rtpsource.NewSession(
		recorder,
		rtpsource.PacketConnReader{PacketConn: videoConn},
		rtpsource.PacketConnReader{PacketConn: audioConn},
		cfg.VideoTimescale, cfg.AudioTimescale,
		logger,
	)

	logger.Info().Src("main").Msgf("recording to %s", sessionPath)

	sessionErr := session.Run(ctx, int(cfg.AudioSampleRate))

	if err := recorder.Stop(); err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	return sessionErr
}

func sessionFileName(t time.Time) string {
	return t.Format("20060102-150405") + ".mp4"
}
