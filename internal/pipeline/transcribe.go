package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopdesk/workorder-cli/pkg/whisper"
)

// AudioClip is one uploaded voice memo, snapshotted into memory at intake.
type AudioClip struct {
	Data     []byte
	Filename string
}

// Transcriber turns audio clips into one concatenated transcript.
type Transcriber struct {
	client      whisper.Client
	callTimeout time.Duration
}

// NewTranscriber creates a Transcriber over the given client.
func NewTranscriber(client whisper.Client) *Transcriber {
	return &Transcriber{client: client, callTimeout: defaultCallTimeout}
}

// TranscribeAll transcribes clips sequentially in submission order and joins
// the non-empty transcripts with single spaces. A clip that fails contributes
// nothing and does not stop the remaining clips; each failure is reported as
// a note in the second return value.
func (t *Transcriber) TranscribeAll(ctx context.Context, clips []AudioClip) (string, []string) {
	var transcripts []string
	var notes []string

	for i, clip := range clips {
		if len(clip.Data) == 0 {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
		text, err := t.client.Transcribe(callCtx, clip.Data, clip.Filename)
		cancel()

		if err != nil {
			zap.L().Warn("pipeline: transcription failed",
				zap.Int("clip", i), zap.String("filename", clip.Filename), zap.Error(err))
			notes = append(notes, "Audio transcription error: "+truncateNote(err.Error()))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			transcripts = append(transcripts, text)
		}
	}

	return strings.Join(transcripts, " "), notes
}
