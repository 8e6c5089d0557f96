// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/service/stt"
	"pronunciation-practice-service/internal/service/transcript"
)

// ErrNotStarted is returned by SendAudio before Start.
var ErrNotStarted = errors.New("google stt: stream not started")

// Config holds the recognition settings sent as the first stream message.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
	WordConfidence bool
}

// DefaultConfig returns settings for 16 kHz browser microphone audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		WordConfidence: true,
	}
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback

	done        chan struct{}
	releaseOnce sync.Once
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set
// unless opts supply credentials or a connection.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Adapter, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client: c,
		cfg:    cfg,
		logger: logging.WithComponent("stt-google"),
		done:   make(chan struct{}),
	}, nil
}

// Start opens the streaming recognition session, sends the config message
// and begins delivering results to cb on a background goroutine.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(a.cfg),
		},
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.stream = stream
	a.cb = cb
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return ErrNotStarted
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream. The recognizer then flushes its last
// results and ends the stream, at which point the client is released and
// Done is closed. Without a started stream the client is released at once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	a.mu.Unlock()

	if stream == nil {
		return a.release()
	}
	return stream.CloseSend()
}

// Done is closed once the result stream has ended and the client is released.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

func (a *Adapter) release() error {
	var err error
	a.releaseOnce.Do(func() {
		err = a.client.Close()
		close(a.done)
	})
	return err
}

// listen receives transcript responses and invokes callbacks until the
// stream ends.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	defer func() {
		if err := a.release(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close speech client")
		}
	}()
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			cb.OnError(err)
			return
		}

		for _, r := range resp.GetResults() {
			ev, ok := resultToEvent(r)
			if !ok {
				a.logger.Debug().
					Str("result", protojson.Format(r)).
					Msg("Skipping result without alternatives")
				continue
			}
			if ev.IsFinal {
				cb.OnFinal(ev.Text, ev.Words)
			} else {
				cb.OnPartial(ev.Text, ev.Words)
			}
		}
	}
}

func streamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(cfg.AudioEncoding),
			SampleRateHertz:            cfg.SampleRateHz,
			LanguageCode:               cfg.LanguageCode,
			EnableWordConfidence:       cfg.WordConfidence,
			EnableAutomaticPunctuation: false,
		},
		InterimResults: cfg.InterimResults,
	}
}

// resultToEvent maps the top alternative of a streaming result. Google
// reports 0 for confidences it did not compute, so those become unknown.
func resultToEvent(r *speechpb.StreamingRecognitionResult) (transcript.RecognitionEvent, bool) {
	alts := r.GetAlternatives()
	if len(alts) == 0 {
		return transcript.RecognitionEvent{}, false
	}
	alt := alts[0]

	ev := transcript.RecognitionEvent{
		Text:    alt.GetTranscript(),
		IsFinal: r.GetIsFinal(),
	}
	for _, w := range alt.GetWords() {
		hyp := transcript.WordHypothesis{Token: w.GetWord()}
		if c := float64(w.GetConfidence()); c > 0 {
			hyp.Confidence = &c
		}
		ev.Words = append(ev.Words, hyp)
	}
	return ev, true
}

// parseAudioEncoding maps an encoding name to the API enum, falling back to
// LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[strings.ToUpper(name)]; ok &&
		v != int32(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED) {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}
