// Command duplexdemo runs a short engine session from the command line:
// review mode plays reference+vocal through the default output device,
// duplex mode runs a capture session fed by a synthetic input and can write
// the captured audio to a WAV file.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/spf13/viper"

	duplex "github.com/overdub-audio/duplex-go"
	"github.com/overdub-audio/duplex-go/hw"
	"github.com/overdub-audio/duplex-go/hw/otodrv"
)

func setDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("mode", "review")
	viper.SetDefault("samplerate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("reference", "")
	viper.SetDefault("vocal", "")
	viper.SetDefault("record", "")
	viper.SetDefault("seconds", 5)
	viper.SetDefault("vocaloffset", 0)
}

func configureLogger(level string) error {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return fmt.Errorf("unexpected log level: %s", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
	return nil
}

func loadTrack(e *duplex.Engine, path string, load func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return load(f)
}

func main() {
	setDefaults()
	viper.SetEnvPrefix("DUPLEXDEMO")
	viper.AutomaticEnv()
	viper.SetConfigName("duplexdemo")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
	}

	if err := configureLogger(viper.GetString("loglevel")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(); err != nil {
		slog.Error("demo failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	var (
		mode       = viper.GetString("mode")
		sampleRate = viper.GetInt("samplerate")
		channels   = viper.GetInt("channels")
		seconds    = viper.GetInt("seconds")
	)

	input := hw.NewSynthInput(channels)
	opener := &otodrv.Opener{Input: input}
	engine := duplex.New(duplex.WithStreamOpener(opener))

	if ref := viper.GetString("reference"); ref != "" {
		if err := loadTrack(engine, ref, func(f *os.File) error { return engine.LoadReference(f) }); err != nil {
			return fmt.Errorf("load reference %s: %w", ref, err)
		}
	}
	if voc := viper.GetString("vocal"); voc != "" {
		if err := loadTrack(engine, voc, func(f *os.File) error { return engine.LoadVocal(f) }); err != nil {
			return fmt.Errorf("load vocal %s: %w", voc, err)
		}
	}

	switch mode {
	case "review":
		engine.SetVocalOffsetFrames(viper.GetInt64("vocaloffset"))
		if err := engine.StartPlaybackReview(); err != nil {
			return err
		}

	case "duplex":
		engine.RegisterCaptureConsumer(func(pcm []byte, meta duplex.CaptureFrame) {
			slog.Debug("captured",
				slog.Int("frames", int(meta.NumFrames)),
				slog.Int64("rel_pos", meta.RelativeFramePos),
			)
		})
		if err := engine.StartDuplexRecording(sampleRate, channels); err != nil {
			return err
		}
		if record := viper.GetString("record"); record != "" {
			if err := engine.StartFileRecording(record); err != nil {
				return err
			}
		}
		go feedTone(input, sampleRate, channels, time.Duration(seconds)*time.Second)

	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}

	time.Sleep(time.Duration(seconds) * time.Second)

	if err := engine.Stop(); err != nil {
		return err
	}

	snap := engine.Snapshot()
	slog.Info("session finished",
		slog.Int64("session_id", snap.SessionID),
		slog.Int64("frames", snap.LastFrame),
		slog.Int64("offset_frames", snap.OffsetFrames),
		slog.Bool("captured", snap.HasCaptured),
		slog.Int64("dropped", engine.DroppedFrames()),
	)
	return nil
}

// feedTone pushes a 440 Hz sine into the synthetic capture stream in 10 ms
// batches, standing in for a microphone.
func feedTone(input *hw.SynthInput, sampleRate, channels int, d time.Duration) {
	const freq = 440.0
	batchFrames := sampleRate / 100
	batch := make([]float32, batchFrames*channels)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.Now().Add(d)
	var phase float64
	for time.Now().Before(deadline) {
		for f := 0; f < batchFrames; f++ {
			s := float32(0.5 * math.Sin(phase))
			phase += 2 * math.Pi * freq / float64(sampleRate)
			for c := 0; c < channels; c++ {
				batch[f*channels+c] = s
			}
		}
		input.Feed(batch)
		<-ticker.C
	}
}
