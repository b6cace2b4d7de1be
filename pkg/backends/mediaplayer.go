package backends

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
)

const mediaPlayerLogPrefix = "backends:mediaplayer"

// Playback states.
const (
	PlaybackPlaying = 0
	PlaybackPaused  = 1
)

// Sound menu controls content can listen to.
const (
	ControlPlayPause = "playPause"
	ControlPrevious  = "previous"
	ControlNext      = "next"
)

// Track is the track shown in the sound menu.
type Track struct {
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Title       string `json:"title"`
	ArtLocation string `json:"artLocation,omitempty"`
}

// MediaPlayerState is a snapshot of the sound menu entry.
type MediaPlayerState struct {
	Track         Track `json:"track"`
	CanGoNext     bool  `json:"canGoNext"`
	CanGoPrevious bool  `json:"canGoPrevious"`
	CanPlay       bool  `json:"canPlay"`
	CanPause      bool  `json:"canPause"`
	PlaybackState int   `json:"playbackState"`

	// Controls lists the controls with a content handler, sorted.
	Controls []string `json:"controls"`
}

// MediaPlayer keeps the sound menu entry and its control handlers. Each
// control has at most one handler; registering null removes it.
type MediaPlayer struct {
	mu       sync.Mutex
	state    MediaPlayerState
	controls map[string]*dispatcher.Callback
}

// NewMediaPlayer creates a paused media player with no track.
func NewMediaPlayer() *MediaPlayer {
	return &MediaPlayer{
		state:    MediaPlayerState{PlaybackState: PlaybackPaused},
		controls: make(map[string]*dispatcher.Callback),
	}
}

// Register adds the MediaPlayer namespace to d.
func (p *MediaPlayer) Register(d *dispatcher.Dispatcher) {
	ns := bootstrap.NamespaceMediaPlayer
	d.Register(ns, "onPlayPause", p.onControl(ControlPlayPause))
	d.Register(ns, "onPrevious", p.onControl(ControlPrevious))
	d.Register(ns, "onNext", p.onControl(ControlNext))
	d.Register(ns, "setTrack", p.setTrack)
	d.Register(ns, "setCanGoNext", p.setFlag(func(s *MediaPlayerState, v bool) { s.CanGoNext = v }))
	d.Register(ns, "setCanGoPrevious", p.setFlag(func(s *MediaPlayerState, v bool) { s.CanGoPrevious = v }))
	d.Register(ns, "setCanPlay", p.setFlag(func(s *MediaPlayerState, v bool) { s.CanPlay = v }))
	d.Register(ns, "setCanPause", p.setFlag(func(s *MediaPlayerState, v bool) { s.CanPause = v }))
	d.Register(ns, "setPlaybackState", p.setPlaybackState)
	d.Register(ns, "getPlaybackState", p.getPlaybackState)
}

func (p *MediaPlayer) onControl(control string) dispatcher.Handler {
	return func(_ context.Context, inv *dispatcher.Invocation) error {
		cb, _ := inv.Arg(0).(*dispatcher.Callback)
		if cb == nil && inv.Arg(0) != nil {
			return fmt.Errorf("%s - %s: argument 0 must be a callback or null", mediaPlayerLogPrefix, inv.Name())
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if cb == nil {
			delete(p.controls, control)
			return nil
		}
		p.controls[control] = cb
		return nil
	}
}

func (p *MediaPlayer) setTrack(_ context.Context, inv *dispatcher.Invocation) error {
	m, err := inv.Map(0)
	if err != nil {
		return err
	}
	track := Track{
		Artist:      stringField(m, "artist"),
		Album:       stringField(m, "album"),
		Title:       stringField(m, "title"),
		ArtLocation: stringField(m, "artLocation"),
	}
	if track.Title == "" {
		return fmt.Errorf("%s - setTrack: title is required", mediaPlayerLogPrefix)
	}
	p.mu.Lock()
	p.state.Track = track
	p.mu.Unlock()
	slog.Debug(fmt.Sprintf("%s - now playing %q", mediaPlayerLogPrefix, track.Title))
	return nil
}

// flag reads argument i as a boolean; numbers count as true when non-zero.
func flag(inv *dispatcher.Invocation, i int) (bool, error) {
	switch v := inv.Arg(i).(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	}
	_, err := inv.Bool(i)
	return false, err
}

func (p *MediaPlayer) setFlag(set func(s *MediaPlayerState, v bool)) dispatcher.Handler {
	return func(_ context.Context, inv *dispatcher.Invocation) error {
		v, err := flag(inv, 0)
		if err != nil {
			return err
		}
		p.mu.Lock()
		set(&p.state, v)
		p.mu.Unlock()
		return nil
	}
}

func (p *MediaPlayer) setPlaybackState(_ context.Context, inv *dispatcher.Invocation) error {
	state, err := inv.Int(0)
	if err != nil {
		return err
	}
	if state != PlaybackPlaying && state != PlaybackPaused {
		return fmt.Errorf("%s - unknown playback state %d", mediaPlayerLogPrefix, state)
	}
	p.mu.Lock()
	p.state.PlaybackState = state
	p.mu.Unlock()
	return nil
}

func (p *MediaPlayer) getPlaybackState(_ context.Context, inv *dispatcher.Invocation) error {
	p.mu.Lock()
	state := p.state.PlaybackState
	p.mu.Unlock()
	return inv.Reply(state)
}

// State returns a snapshot of the sound menu entry.
func (p *MediaPlayer) State() MediaPlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	s.Controls = make([]string, 0, len(p.controls))
	for control := range p.controls {
		s.Controls = append(s.Controls, control)
	}
	sort.Strings(s.Controls)
	return s
}

// Trigger runs the content handler for control, as the sound menu does
// when the user presses it. It reports whether a handler was registered.
func (p *MediaPlayer) Trigger(control string) (bool, error) {
	p.mu.Lock()
	cb := p.controls[control]
	p.mu.Unlock()
	if cb == nil {
		return false, nil
	}
	if err := cb.Invoke(); err != nil {
		return true, fmt.Errorf("%s - %s handler: %w", mediaPlayerLogPrefix, control, err)
	}
	return true, nil
}
