// Package playback implements the playback pipeline: the presentation and
// platform state of one player, and the orchestration units that move it
// from a URL to a fully buffered media source.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hlsengine/internal/abr"
	"hlsengine/internal/cache"
	"hlsengine/internal/config"
	"hlsengine/internal/fetch"
	"hlsengine/internal/logger"
	"hlsengine/internal/media"
	"hlsengine/internal/metrics"
	"hlsengine/internal/models"
	"hlsengine/internal/orchestration"
	"hlsengine/internal/reactive"
)

var (
	// ErrUnknownTrack is returned when selecting a track the current
	// presentation does not contain.
	ErrUnknownTrack = errors.New("playback: unknown track")
	// ErrInvalidPreload is returned for a preload policy other than none,
	// metadata or auto.
	ErrInvalidPreload = errors.New("playback: invalid preload policy")
)

// Options configures a Session. Fetcher and Backend are required.
type Options struct {
	Config    *config.Config
	Fetcher   fetch.Fetcher
	Backend   media.Backend
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Estimator *abr.Estimator
	// Cache, if set, is the segment cache behind Fetcher. The session
	// reports its buffered segments as the cache's active keys.
	Cache *cache.SegmentCache
}

type binding struct {
	unit   *orchestration.Unit[Snapshot]
	source reactive.Source[Snapshot]
}

// Session is one playback engine instance.
type Session struct {
	cfg       config.Config
	fetcher   fetch.Fetcher
	backend   media.Backend
	log       logger.Logger
	metrics   *metrics.Metrics
	estimator *abr.Estimator
	cache     *cache.SegmentCache

	loop     *reactive.Loop
	state    *reactive.Cell[State]
	platform *reactive.Cell[Platform]
	times    *reactive.Stream[TimeUpdate]
	bindings []binding

	mu       sync.Mutex
	element  media.Element
	unwatch  func()
	lastTime TimeUpdate
	started  bool
	closed   bool
	cancel   context.CancelFunc
}

// NewSession creates a session. Call Start to begin orchestration.
func NewSession(opts Options) *Session {
	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	est := opts.Estimator
	if est == nil {
		est = abr.NewEstimator(cfg.InitialBandwidth)
	}

	loop := reactive.NewLoop()
	s := &Session{
		cfg:       cfg,
		fetcher:   opts.Fetcher,
		backend:   opts.Backend,
		log:       log,
		metrics:   opts.Metrics,
		estimator: est,
		cache:     opts.Cache,
		loop:      loop,
		state:     reactive.NewCell(State{Preload: cfg.Preload}, loop),
		platform:  reactive.NewCell(Platform{}, loop),
		times:     &reactive.Stream[TimeUpdate]{},
	}

	stateOnly := reactive.Map[State, Snapshot](s.state, func(st State) Snapshot {
		return Snapshot{State: st}
	})
	withPlatform := reactive.Map(reactive.Combine2[State, Platform](s.state, s.platform),
		func(p reactive.Pair[State, Platform]) Snapshot {
			return Snapshot{State: p.First, Platform: p.Second}
		})
	withTime := reactive.Map(reactive.Combine3[State, Platform, TimeUpdate](s.state, s.platform, s.times),
		func(t reactive.Triple[State, Platform, TimeUpdate]) Snapshot {
			return Snapshot{State: t.First, Platform: t.Second, Time: t.Third}
		})

	s.bind(stateOnly,
		s.resolvePresentationUnit(),
		s.selectTracksUnit(),
		s.resolveTrackUnit(models.KindVideo),
		s.resolveTrackUnit(models.KindAudio),
		s.resolveTrackUnit(models.KindText),
		s.calculateDurationUnit(),
	)
	s.bind(withPlatform,
		s.openMediaSourceUnit(),
		s.createTrackBufferUnit(models.KindVideo),
		s.createTrackBufferUnit(models.KindAudio),
		s.updateDurationUnit(),
		s.setupCaptionsUnit(),
		s.activateCaptionsUnit(),
		s.loadCuesUnit(),
	)
	s.bind(withTime,
		s.loadSegmentsUnit(models.KindVideo),
		s.loadSegmentsUnit(models.KindAudio),
		s.endOfStreamUnit(),
	)

	if s.cache != nil {
		s.cache.SetProvider(s.activeSegmentKeys)
	}
	return s
}

func (s *Session) bind(src reactive.Source[Snapshot], units ...*orchestration.Unit[Snapshot]) {
	for _, u := range units {
		s.bindings = append(s.bindings, binding{unit: u, source: src})
	}
}

// Start runs the session's scheduler and binds every unit. Tasks run under
// ctx; cancelling it stops orchestration.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, b := range s.bindings {
		b.unit.Bind(ctx, b.source)
	}
	s.loop.Start(ctx)
	s.emitTime(TimeUpdate{})
	s.log.Infof("Playback session started with %d orchestration units", len(s.bindings))
}

// Close stops every unit, waiting for in-flight tasks, then stops the
// scheduler.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started, cancel := s.started, s.cancel
	unwatch := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}

	for _, b := range s.bindings {
		b.unit.Stop()
	}
	if started {
		cancel()
		<-s.loop.Done()
	}
	s.log.Infof("Playback session closed")
}

// Load selects a new presentation URL, discarding the previous
// presentation and the media source built for it.
func (s *Session) Load(url string) {
	s.state.Patch(func(st *State) {
		st.URL = url
		st.Presentation = models.NewPresentation(url)
		st.VideoTrackID, st.AudioTrackID, st.TextTrackID = "", "", ""
		st.SelectionFor = ""
		st.PlayRequested = false
	})
	s.platform.Patch(func(pf *Platform) {
		pf.MediaSource = nil
		pf.Duration = 0
		pf.Video, pf.Audio = nil, nil
		pf.Ended = false
	})
	s.emitTime(TimeUpdate{Seeking: true})
	s.log.Infof("Loading %s", url)
}

// SetPreload sets the preload policy: none, metadata or auto.
func (s *Session) SetPreload(preload string) error {
	switch preload {
	case config.PreloadNone, config.PreloadMetadata, config.PreloadAuto:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPreload, preload)
	}
	s.state.Patch(func(st *State) { st.Preload = preload })
	return nil
}

// Play signals play intent, releasing loads deferred by preload none.
func (s *Session) Play() {
	s.state.Patch(func(st *State) { st.PlayRequested = true })
}

// AttachElement sets the element media is played on. Replacing the element
// discards the media source and caption tracks built for the previous one.
// Ready-state changes of el are tracked in Platform.ReadyState.
func (s *Session) AttachElement(el media.Element) {
	s.mu.Lock()
	if s.element == el || s.closed {
		s.mu.Unlock()
		return
	}
	s.element = el
	prev := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()
	if prev != nil {
		prev()
	}

	s.platform.Patch(func(pf *Platform) {
		*pf = Platform{Element: el}
	})
	if el == nil {
		return
	}

	unwatch := el.OnReadyStateChange(func(r media.ReadyState) { s.setReadyState(el, r) })
	s.mu.Lock()
	if s.element != el {
		s.mu.Unlock()
		unwatch()
		return
	}
	s.unwatch = unwatch
	s.mu.Unlock()
	s.setReadyState(el, el.ReadyState())
}

func (s *Session) setReadyState(el media.Element, r media.ReadyState) {
	s.platform.Patch(func(pf *Platform) {
		if pf.Element == el {
			pf.ReadyState = r
		}
	})
}

// UpdateTime reports the playhead position during normal playback.
func (s *Session) UpdateTime(t float64) {
	s.emitTime(TimeUpdate{CurrentTime: t})
}

// Seek reports an explicit jump of the playhead. Loads in flight for the
// previous position are cancelled.
func (s *Session) Seek(t float64) {
	s.emitTime(TimeUpdate{CurrentTime: t, Seeking: true})
}

func (s *Session) emitTime(tu TimeUpdate) {
	s.mu.Lock()
	s.lastTime = tu
	s.mu.Unlock()
	s.loop.Schedule(func() { s.times.Emit(tu) })
}

// SelectTextTrack shows the text track with the given ID, or hides captions
// when id is empty.
func (s *Session) SelectTextTrack(id string) error {
	if id != "" {
		t := s.state.Get().Presentation.Track(id)
		if t == nil || t.Kind != models.KindText {
			return fmt.Errorf("%w: %q", ErrUnknownTrack, id)
		}
	}
	s.state.Patch(func(st *State) { st.TextTrackID = id })
	return nil
}

// State returns the committed state snapshot.
func (s *Session) State() State {
	return s.state.Get()
}

// Platform returns the committed platform snapshot.
func (s *Session) Platform() Platform {
	return s.platform.Get()
}

// CurrentTime returns the last reported playhead position.
func (s *Session) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTime.CurrentTime
}

// Stage returns the current pipeline stage.
func (s *Session) Stage() Stage {
	return CurrentStage(s.state.Get(), s.platform.Get())
}

// BandwidthEstimate returns the current bandwidth estimate in bits per second.
func (s *Session) BandwidthEstimate() float64 {
	return s.estimator.Estimate()
}
