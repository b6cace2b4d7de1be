package api

// Playback states.
const (
	PlaybackPlaying = 0
	PlaybackPaused  = 1
)

// Track is the track shown in the sound menu. Title is required.
type Track struct {
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Title       string `json:"title"`
	ArtLocation string `json:"artLocation,omitempty"`
}

// MediaPlayer drives the application's sound menu entry.
type MediaPlayer struct{ api *API }

// onControl registers fn for a sound menu control. A nil fn removes the
// handler.
func (m *MediaPlayer) onControl(method string, fn func()) error {
	if fn == nil {
		return m.api.Invoke(method, nil)
	}
	return m.api.Invoke(method, fn)
}

// OnPlayPause runs fn every time play/pause is pressed.
func (m *MediaPlayer) OnPlayPause(fn func()) error {
	return m.onControl("MediaPlayer.onPlayPause", fn)
}

func (m *MediaPlayer) OnPrevious(fn func()) error {
	return m.onControl("MediaPlayer.onPrevious", fn)
}

func (m *MediaPlayer) OnNext(fn func()) error {
	return m.onControl("MediaPlayer.onNext", fn)
}

// SetTrack updates the track shown in the sound menu.
func (m *MediaPlayer) SetTrack(track Track) error {
	return m.api.Invoke("MediaPlayer.setTrack", track)
}

func (m *MediaPlayer) SetCanGoNext(v bool) error {
	return m.api.Invoke("MediaPlayer.setCanGoNext", v)
}

func (m *MediaPlayer) SetCanGoPrevious(v bool) error {
	return m.api.Invoke("MediaPlayer.setCanGoPrevious", v)
}

func (m *MediaPlayer) SetCanPlay(v bool) error {
	return m.api.Invoke("MediaPlayer.setCanPlay", v)
}

func (m *MediaPlayer) SetCanPause(v bool) error {
	return m.api.Invoke("MediaPlayer.setCanPause", v)
}

// SetPlaybackState sets PlaybackPlaying or PlaybackPaused.
func (m *MediaPlayer) SetPlaybackState(state int) error {
	return m.api.Invoke("MediaPlayer.setPlaybackState", state)
}

// GetPlaybackState answers with the current playback state.
func (m *MediaPlayer) GetPlaybackState(cb func(int)) error {
	return m.api.Invoke("MediaPlayer.getPlaybackState", reply(cb, asInt))
}
