package duplex

// Mode is the engine transport mode. It is stored in a single atomic field
// on the engine; transitions happen only on the control path.
type Mode int32

const (
	// ModeIdle means no session is active and no hardware path is open.
	ModeIdle Mode = iota

	// ModeDuplexRecord captures microphone input while playing the
	// reference track. The vocal contribution is forced to zero at mix
	// time regardless of the caller-set gain.
	ModeDuplexRecord

	// ModePlaybackReview mixes reference and vocal at caller-set gains
	// and vocal offset. No capture takes place and no data crosses the
	// ring boundary.
	ModePlaybackReview
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDuplexRecord:
		return "duplex_record"
	case ModePlaybackReview:
		return "playback_review"
	default:
		return "unknown"
	}
}
