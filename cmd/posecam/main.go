// Command posecam stabilises a stream of PoseNet detections and serves the
// derived head tilt and proximity features.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/db"
	"github.com/banshee-data/pose.report/internal/monitor"
	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pipeline"
	"github.com/banshee-data/pose.report/internal/source"
	"github.com/banshee-data/pose.report/internal/timeutil"
	"github.com/banshee-data/pose.report/internal/version"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Path to the JSON tuning config")
	filePath   = flag.String("file", "", "Replay newline-delimited JSON frames from a file (\"-\" for stdin)")
	udpAddr    = flag.String("udp", "", "Receive one JSON frame per datagram on this address (e.g. :9400)")
	udpRcvBuf  = flag.Int("udp-rcvbuf", 4<<20, "UDP socket receive buffer in bytes")
	serialPort = flag.String("serial", "", "Read JSON frames from a serial port (e.g. /dev/ttyACM0)")
	baudRate   = flag.Int("baud", 115200, "Serial baud rate")
	pcapFile   = flag.String("pcap", "", "Replay pose datagrams from a capture (requires -tags=pcap)")
	pcapPort   = flag.Int("pcap-port", 9400, "UDP port to extract from the capture")
	fps        = flag.Float64("fps", -1, "Replay pacing in frames per second; negative uses replay_fps from config")
	dbPath     = flag.String("db", "pose.db", "SQLite database path (empty disables persistence)")
	listen     = flag.String("listen", ":8080", "HTTP listen address (empty disables the web server)")
	plotsDir   = flag.String("plots", "", "Write feature PNG plots into this directory on exit")
	debug      = flag.Bool("debug", false, "Log per-frame trace and diagnostic statistics to stderr")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// sourceFlags selects exactly one pose source.
type sourceFlags struct {
	File     string
	UDP      string
	RcvBuf   int
	Serial   string
	Baud     int
	PCAP     string
	PCAPPort int
	FPS      float64
}

func (f sourceFlags) validate() error {
	n := 0
	for _, s := range []string{f.File, f.UDP, f.Serial, f.PCAP} {
		if s != "" {
			n++
		}
	}
	switch n {
	case 0:
		return errors.New("no pose source: set one of -file, -udp, -serial or -pcap")
	case 1:
		return nil
	default:
		return errors.New("only one of -file, -udp, -serial or -pcap may be set")
	}
}

// open returns the selected source and a short description for the session.
func (f sourceFlags) open(clock timeutil.Clock) (source.Source, string, error) {
	if err := f.validate(); err != nil {
		return nil, "", err
	}
	lineOpts := source.LineOptions{FramesPerSecond: f.FPS, Clock: clock}

	switch {
	case f.File == "-":
		return source.NewLineSource(os.Stdin, lineOpts), "stdin", nil
	case f.File != "":
		src, err := source.OpenFile(f.File, lineOpts)
		return src, "file:" + f.File, err
	case f.UDP != "":
		src, err := source.ListenUDP(source.UDPConfig{Address: f.UDP, RcvBuf: f.RcvBuf, Clock: clock})
		return src, "udp:" + f.UDP, err
	case f.Serial != "":
		src, err := source.OpenSerial(f.Serial, source.PortOptions{BaudRate: f.Baud}, lineOpts)
		return src, "serial:" + f.Serial, err
	default:
		src, err := source.OpenPCAP(f.PCAP, f.PCAPPort, lineOpts)
		return src, fmt.Sprintf("pcap:%s:%d", f.PCAP, f.PCAPPort), err
	}
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	// subcommand: posecam [-db path] migrate <action>
	if flag.Arg(0) == "migrate" {
		if *dbPath == "" {
			log.Fatal("migrate requires -db")
		}
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	log.Printf("Starting %s", version.String())

	if *debug {
		monitoring.SetLogWriters(monitoring.LogWriters{Diag: os.Stderr, Trace: os.Stderr})
	}

	tuning, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	replayFPS := *fps
	if replayFPS < 0 {
		replayFPS = tuning.GetReplayFPS()
	}

	clock := timeutil.RealClock{}
	srcFlags := sourceFlags{
		File:     *filePath,
		UDP:      *udpAddr,
		RcvBuf:   *udpRcvBuf,
		Serial:   *serialPort,
		Baud:     *baudRate,
		PCAP:     *pcapFile,
		PCAPPort: *pcapPort,
		FPS:      replayFPS,
	}
	src, srcDesc, err := srcFlags.open(clock)
	if err != nil {
		log.Fatalf("Failed to open pose source: %v", err)
	}
	defer src.Close()

	live := monitor.NewLiveState(0, tuning.GetReportHistoryLimit())
	sinks := []pipeline.Sink{live}

	var (
		database  *db.DB
		sessionID string
	)
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		cfgJSON, err := json.Marshal(tuning)
		if err != nil {
			log.Fatalf("Failed to encode config: %v", err)
		}
		session, err := database.CreateSession(clock.Now(), srcDesc, string(cfgJSON))
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		sessionID = session.ID
		sinks = append(sinks, db.NewRecorder(database, sessionID))
		log.Printf("Recording session %s from %s into %s", sessionID, srcDesc, database.Path())
	}

	var plotter *monitor.FeaturePlotter
	if *plotsDir != "" {
		plotter = monitor.NewFeaturePlotter()
		sinks = append(sinks, plotter)
	}

	p := pipeline.New(tuning.PipelineConfig(), clock, sinks...)
	log.Printf("Pipeline ready: window=%d mode=%s report every %ds (%s)",
		p.Config().WindowSize, p.Config().Mode, p.Config().Report.Interval, p.Config().Report.Trigger)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// pipeline routine: one frame at a time in arrival order
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := p.Run(ctx, src)
		log.Printf("pipeline routine terminated after %d frames (%d partial)", p.Frames(), p.Partial())
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline stopped: %v", err)
			stop()
			return
		}
		if *listen == "" {
			stop()
		}
	}()

	if *listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{
			Address:    *listen,
			Live:       live,
			DB:         database,
			SessionID:  sessionID,
			Thresholds: tuning.Thresholds(),
		})
		if err != nil {
			log.Fatalf("Failed to create web server: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil {
				log.Printf("HTTP server error: %v", err)
				stop()
			}
		}()
	}

	wg.Wait()

	if history := p.Reporter().History(); len(history) > 0 {
		last := history[len(history)-1]
		log.Printf("%d snapshot reports produced; last #%d at second %d with %d detections",
			p.Reporter().Sequence(), last.Sequence, last.Second, len(last.Detections))
	}

	if plotter != nil {
		written, err := plotter.GeneratePlots(*plotsDir)
		if err != nil {
			log.Printf("Failed to generate plots: %v", err)
		}
		for _, path := range written {
			log.Printf("Wrote %s", path)
		}
	}

	log.Printf("Graceful shutdown complete")
}
