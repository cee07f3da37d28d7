package dasher

import (
	"context"
	"time"
)

// StepResult reports what one Engine.Process call accomplished, so a
// host loop can decide whether to call again immediately or wait for
// more input (spec §5's cooperative scheduling model).
type StepResult struct {
	Progressed        bool
	PeriodSwitched     bool
	ManifestPublished  bool
	Done               bool
	Warnings           []Warning
}

// Engine ties the Registry, PeriodMachine, Resolver, Scheduler, and
// Emitter together behind a single non-blocking Process call, per
// spec §2 ("Component Design") and §5 ("Concurrency & Resource
// Model"). It never performs blocking I/O itself.
type Engine struct {
	opts Options

	registry  *Registry
	periods   *PeriodMachine
	resolver  *Resolver
	scheduler *Scheduler
	emitter   *Emitter
	store     *StateStore

	presentation *Presentation

	pendingSegCallbacks int
	publishedFirstSAP   map[string]bool
}

// NewEngine wires an Engine from its external collaborators, per the
// narrow interfaces in external.go.
func NewEngine(opts Options, fetcher PacketFetcher, expander TemplateExpander, opener MuxerOpener, serializer ManifestSerializer) *Engine {
	if opts.HbbTVCompat && opts.Profile == ProfileHbbTV15 {
		opts.CheckMainRole = true
		opts.SwitchMode = SwitchMulti
	}
	return &Engine{
		opts:              opts,
		registry:          NewRegistry(),
		periods:           NewPeriodMachine(),
		resolver:          NewResolver(expander, opener),
		scheduler:         NewScheduler(fetcher, opts),
		emitter:           NewEmitter(serializer),
		store:             NewStateStore(opts.StateFilePath),
		presentation:      &Presentation{},
		publishedFirstSAP: make(map[string]bool),
	}
}

// Restore loads a prior snapshot and applies it to the engine's
// current (still-idle) period, per spec §4.2's restore path.
func (e *Engine) Restore(ctx context.Context) error {
	doc, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	if doc.SnapshotID != "" {
		Restore(e.periods.Current(), doc)
	}
	return nil
}

// ConfigureStream applies props to streamID and routes it into the
// current or next Period depending on whether a switch is required,
// per spec §4.1.
func (e *Engine) ConfigureStream(streamID string, props StreamProps) ConfigureResult {
	res := e.registry.Configure(streamID, props, e.opts.SwitchMode)
	s := e.registry.Get(streamID)

	switch res {
	case ConfigurePeriodSwitch:
		e.periods.RequestSwitch(s)
	default:
		if !streamInPeriod(e.periods.Current(), s) && !streamInPeriod(e.periods.Next(), s) {
			e.periods.Current().Streams = append(e.periods.Current().Streams, s)
			if e.periods.Current().State == PeriodIdle {
				e.periods.Current().State = PeriodConfiguring
			}
		}
	}
	return res
}

func streamInPeriod(p *Period, s *Stream) bool {
	if p == nil {
		return false
	}
	for _, cs := range p.Streams {
		if cs == s {
			return true
		}
	}
	return false
}

// Process performs one non-blocking unit of work and returns
// immediately, per spec §5: "the engine is a function repeatedly
// invoked by a host filter scheduler."
func (e *Engine) Process(ctx context.Context) (StepResult, error) {
	var result StepResult
	current := e.periods.Current()

	switch current.State {
	case PeriodIdle:
		// nothing configured yet; nothing to do until ConfigureStream
		// adds a stream and flips this to Configuring.

	case PeriodConfiguring:
		GroupIntoAdaptationSets(current, e.opts)
		if e.periods.ReadyToSegment() {
			resolved, err := e.resolver.ResolvePeriod(ctx, current, e.opts)
			if err != nil {
				return result, err
			}
			for _, r := range resolved {
				e.scheduler.AttachConnection(r.RepresentationID, r.Connection)
			}
			e.periods.AdvanceToSegmenting()
			if err := e.store.Save(ctx, Snapshot(current)); err != nil {
				return result, err
			}
			result.Progressed = true
		}

	case PeriodSegmenting:
		progressed, err := e.scheduler.StepPeriod(ctx, current)
		if err != nil {
			return result, err
		}
		result.Progressed = progressed
		result.Warnings = e.scheduler.Warnings()

		for _, s := range current.Streams {
			if s.Counters.RepInit && !e.publishedFirstSAP[s.RepID] {
				e.publishedFirstSAP[s.RepID] = true
				result.ManifestPublished = true
			}
		}

		if AllStreamsDone(current) {
			e.periods.AdvanceToDraining()
			result.Progressed = true
		}

	case PeriodDraining:
		e.periods.AdvanceToSwitching(e.pendingSegCallbacks)
		if current.State == PeriodSwitching {
			result.Progressed = true
		}

	case PeriodSwitching:
		for _, s := range current.Streams {
			e.scheduler.DetachConnection(s.RepID)
		}
		if err := e.store.Save(ctx, Snapshot(current)); err != nil {
			return result, err
		}
		e.presentation.Periods = append(e.presentation.Periods, current)

		e.periods.PromoteNext()
		result.PeriodSwitched = true
		result.Progressed = true
		result.ManifestPublished = true

		if e.periods.Current().State == PeriodTerminal {
			result.Done = true
		}

	case PeriodTerminal:
		result.Done = true
	}

	return result, nil
}

// Presentation exposes the accumulated Presentation tree for manifest
// publication (spec §4.7).
func (e *Engine) Presentation() *Presentation {
	BuildPresentation(e.presentation, e.opts, false, false, false, time.Now())
	e.presentation.CurrentPeriod = e.periods.Current()
	e.presentation.NextPeriod = e.periods.Next()
	return e.presentation
}

// PublishManifest serializes the current Presentation tree via the
// configured ManifestSerializer.
func (e *Engine) PublishManifest(ctx context.Context) ([]byte, error) {
	return e.emitter.Publish(ctx, e.Presentation())
}
