package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/dasher/internal/config"
	"github.com/jmylchreest/dasher/internal/dasher"
	"github.com/jmylchreest/dasher/internal/ingest"
	"github.com/jmylchreest/dasher/internal/muxer"
	"github.com/jmylchreest/dasher/internal/storage"
	"github.com/jmylchreest/dasher/pkg/format"
	"github.com/jmylchreest/dasher/pkg/mpd"
)

var runManifestPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Segment a set of elementary streams described by a stream manifest",
	Long: `run reads a stream-manifest YAML file describing the elementary
streams to ingest, configures a dasher engine from it, and drives the
engine's Process loop until every stream reaches end-of-stream,
writing fMP4 segments and the MPD manifest under storage.output_dir.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runManifestPath, "manifest", "", "path to the stream-manifest YAML file (required)")
	_ = runCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(runCmd)
}

// streamManifest is the run.go input format: a flat list of elementary
// streams to configure before the engine starts processing.
type streamManifest struct {
	Streams []streamManifestEntry `yaml:"streams"`
}

type streamManifestEntry struct {
	ID         string   `yaml:"id"`
	PeriodID   string   `yaml:"period_id"`
	Type       string   `yaml:"type"` // video, audio, text
	CodecID    string   `yaml:"codec_id"`
	Timescale  uint32   `yaml:"timescale"`
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	SampleRate uint32   `yaml:"sample_rate"`
	Channels   uint32   `yaml:"channels"`
	Language   string   `yaml:"language"`
	Roles      []string `yaml:"roles"`
	Template   string   `yaml:"template"`
	Source     string   `yaml:"source"` // path to a .ts capture or a raw elementary-stream file
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	manifestBytes, err := os.ReadFile(runManifestPath)
	if err != nil {
		return fmt.Errorf("reading stream manifest: %w", err)
	}
	var sm streamManifest
	if err := yaml.Unmarshal(manifestBytes, &sm); err != nil {
		return fmt.Errorf("parsing stream manifest: %w", err)
	}

	opts, err := dasherOptionsFromConfig(cfg.Dasher, cfg.Persistence)
	if err != nil {
		return err
	}

	fetcher := dasher.NewQueueFetcher()
	opener := muxer.NewOpener(cfg.Storage.OutputPath())
	engine := dasher.NewEngine(opts, fetcher, newTemplateExpander(), opener, mpd.NewEncoder())

	if cfg.Persistence.RestoreOnStart {
		if err := engine.Restore(ctx); err != nil {
			slog.Warn("restoring engine state", "error", err)
		}
	}

	for _, s := range sm.Streams {
		res := engine.ConfigureStream(s.ID, streamPropsFromEntry(s))
		if res == dasher.ConfigureUnsupported {
			return fmt.Errorf("stream %s: unsupported property change", s.ID)
		}
		if err := feedSource(s, fetcher); err != nil {
			return fmt.Errorf("stream %s: %w", s.ID, err)
		}
	}

	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("creating output sandbox: %w", err)
	}

	return driveEngine(ctx, engine, sandbox, cfg.Storage.OutputDir)
}

// feedSource pushes a manifest entry's source file into fetcher ahead
// of the Process loop. TS captures are demultiplexed by PID; anything
// else is delivered as a single packet, which is enough to exercise
// the segmentation path against a pre-recorded elementary stream
// without a live reframer (SPEC_FULL.md §10.4).
func feedSource(s streamManifestEntry, fetcher *dasher.QueueFetcher) error {
	if s.Source == "" {
		return nil
	}
	if strings.HasSuffix(strings.ToLower(s.Source), ".ts") {
		_, err := ingest.FeedTSFile(s.Source, fetcher)
		return err
	}

	data, err := os.ReadFile(s.Source)
	if err != nil {
		return fmt.Errorf("reading source %s: %w", s.Source, err)
	}
	fetcher.Push(s.ID, dasher.Packet{StreamID: s.ID, Data: data, KeyFrame: true})
	fetcher.CloseStream(s.ID)
	return nil
}

// driveEngine repeatedly calls Process until every configured stream
// has reached end-of-stream, publishing the manifest whenever Process
// reports a change (spec §5's cooperative scheduling contract: the
// engine never blocks, so the host loop is responsible for pacing and
// for deciding when no more progress is possible).
func driveEngine(ctx context.Context, engine *dasher.Engine, sandbox *storage.Sandbox, outputDir string) error {
	idleSteps := 0
	const maxIdleSteps = 1000

	for {
		result, err := engine.Process(ctx)
		if err != nil {
			return fmt.Errorf("processing: %w", err)
		}

		if result.ManifestPublished || result.PeriodSwitched {
			manifestBytes, err := engine.PublishManifest(ctx)
			if err != nil {
				return fmt.Errorf("publishing manifest: %w", err)
			}
			if err := sandbox.WriteFile(outputDir+"/manifest.mpd", manifestBytes); err != nil {
				return fmt.Errorf("writing manifest: %w", err)
			}
			slog.Info("manifest published", "size", format.Bytes(int64(len(manifestBytes))))
		}

		for _, w := range result.Warnings {
			slog.Warn("dasher warning", "kind", w.Kind, "representation", w.RepresentationID, "message", w.Message)
		}

		if result.Done {
			return nil
		}

		if result.Progressed {
			idleSteps = 0
			continue
		}

		idleSteps++
		if idleSteps >= maxIdleSteps {
			return fmt.Errorf("no progress after %d idle steps; streams may still have open queues", maxIdleSteps)
		}
		time.Sleep(time.Millisecond)
	}
}

func streamPropsFromEntry(s streamManifestEntry) dasher.StreamProps {
	return dasher.StreamProps{
		Type:       dasher.StreamType(s.Type),
		CodecID:    s.CodecID,
		Timescale:  s.Timescale,
		Width:      s.Width,
		Height:     s.Height,
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		ID:         s.ID,
		SourceURL:  s.Source,
		Template:   s.Template,
		Language:   s.Language,
		Roles:      s.Roles,
		PeriodID:   s.PeriodID,
	}
}

// dasherOptionsFromConfig translates the Viper-backed DasherConfig into
// dasher.Options, the one place string/enum conversion happens so the
// engine package itself stays free of config-layer concerns (spec
// §10.3's "engine has no knowledge of Viper").
func dasherOptionsFromConfig(d config.DasherConfig, p config.PersistenceConfig) (dasher.Options, error) {
	profile, err := parseProfile(d.Profile)
	if err != nil {
		return dasher.Options{}, err
	}
	switchMode, err := parseSwitchMode(d.SwitchMode)
	if err != nil {
		return dasher.Options{}, err
	}
	ntp, err := parseNTP(d.NTP)
	if err != nil {
		return dasher.Options{}, err
	}

	opts := dasher.Options{
		Profile:       profile,
		SwitchMode:    switchMode,
		Align:         d.Align,
		SAP:           d.SAP,
		NoSAR:         d.NoSAR,
		MixCodecs:     d.MixCodecs,
		SkipSeg:       d.SkipSeg,
		CheckDur:      d.CheckDur,
		Subdur:        d.Subdur,
		DashDur:       d.DashDur,
		NTP:           ntp,
		HbbTVCompat:   d.HbbTVCompat,
		StateFilePath: p.StateFilePath,
	}
	return opts, nil
}

func parseProfile(s string) (dasher.Profile, error) {
	switch s {
	case "live":
		return dasher.ProfileLive, nil
	case "onDemand":
		return dasher.ProfileOnDemand, nil
	case "main":
		return dasher.ProfileMain, nil
	case "HbbTV-1.5":
		return dasher.ProfileHbbTV15, nil
	case "DASH-AVC-264 live":
		return dasher.ProfileAVC264Live, nil
	case "DASH-AVC-264 onDemand":
		return dasher.ProfileAVC264OnDemand, nil
	case "full":
		return dasher.ProfileFull, nil
	default:
		return 0, fmt.Errorf("unknown dasher.profile %q", s)
	}
}

func parseSwitchMode(s string) (dasher.SwitchMode, error) {
	switch s {
	case "default":
		return dasher.SwitchDefault, nil
	case "off":
		return dasher.SwitchOff, nil
	case "on":
		return dasher.SwitchOn, nil
	case "inband":
		return dasher.SwitchInband, nil
	case "force":
		return dasher.SwitchForce, nil
	case "multi":
		return dasher.SwitchMulti, nil
	default:
		return 0, fmt.Errorf("unknown dasher.switch_mode %q", s)
	}
}

func parseNTP(s string) (dasher.NTPMode, error) {
	switch s {
	case "remove":
		return dasher.NTPRemove, nil
	case "yes":
		return dasher.NTPYes, nil
	case "keep":
		return dasher.NTPKeep, nil
	default:
		return 0, fmt.Errorf("unknown dasher.ntp %q", s)
	}
}
