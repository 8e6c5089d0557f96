// Audio client streams a WAV file to the practice websocket as the browser
// would, then prints the attempt result.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/service/audio"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// 100ms chunks streamed in real time
const chunkIntervalMs = 100

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16-bit mono PCM)")
	serverURL := flag.String("server", "ws://localhost:8080/v1/practice/ws", "Practice websocket URL")
	reference := flag.String("reference", "", "Sentence to practice")
	sentenceID := flag.String("sentence", "th-1", "Catalog sentence ID, used when -reference is empty")
	flag.Parse()

	cfg := logging.DefaultConfig()
	cfg.Format = "console"
	logging.Init(cfg)

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio file")
	}
	defer f.Close()

	sampleRate, err := readWAVHeader(f)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid WAV file")
	}
	chunkSize := int(sampleRate) * 2 * chunkIntervalMs / 1000

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *serverURL, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.CloseNow()
	log.Info().Str("server", *serverURL).Msg("Connected")

	done := make(chan *models.AttemptResult, 1)
	go readMessages(ctx, conn, done)

	start := models.ControlMessage{Type: models.ControlStart, Reference: *reference}
	if *reference == "" {
		start.SentenceID = *sentenceID
	}
	if err := writeControl(ctx, conn, start); err != nil {
		log.Fatal().Err(err).Msg("Failed to start attempt")
	}

	chunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()
	for {
		n, err := io.ReadFull(f, chunk)
		if n > 0 {
			samples, cerr := audio.Linear16ToFloat32(chunk[:n-n%2])
			if cerr != nil {
				log.Fatal().Err(cerr).Msg("Failed to convert audio")
			}
			if werr := conn.Write(ctx, websocket.MessageBinary, audio.EncodeFloat32(samples)); werr != nil {
				log.Fatal().Err(werr).Msg("Failed to send frame")
			}
			chunkNum++
			totalBytes += int64(n)
			if chunkNum%10 == 0 {
				log.Debug().Int("chunk", chunkNum).Int64("bytes", totalBytes).Msg("Sent audio")
			}
			// Simulate real-time streaming
			time.Sleep(chunkIntervalMs * time.Millisecond)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read audio")
		}
	}
	log.Info().
		Int("chunks", chunkNum).
		Int64("bytes", totalBytes).
		Dur("elapsed", time.Since(startTime)).
		Msg("Finished streaming, waiting for result")

	if err := writeControl(ctx, conn, models.ControlMessage{Type: models.ControlStop}); err != nil {
		log.Fatal().Err(err).Msg("Failed to stop attempt")
	}

	select {
	case res := <-done:
		if res == nil {
			log.Fatal().Msg("Connection closed before a result arrived")
		}
		log.Info().
			Float64("accuracy", res.Alignment.Accuracy).
			Str("reference", res.Reference).
			Str("heard", res.Transcript).
			Strs("weakWords", res.WeakWords).
			Str("hint", res.Hint).
			Msg("Attempt result")
		conn.Close(websocket.StatusNormalClosure, "")
	case <-ctx.Done():
		log.Fatal().Msg("Timed out waiting for result")
	}
}

func readWAVHeader(r io.Reader) (uint32, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Info().
		Uint16("format", audioFormat).
		Uint16("channels", numChannels).
		Uint32("sampleRate", sampleRate).
		Uint16("bitsPerSample", bitsPerSample).
		Msg("WAV file")

	if audioFormat != 1 || bitsPerSample != 16 || numChannels != 1 {
		return 0, fmt.Errorf("only 16-bit mono PCM is supported")
	}
	if sampleRate != 16000 {
		log.Warn().Uint32("sampleRate", sampleRate).Msg("Expected 16000 Hz audio")
	}
	return sampleRate, nil
}

func readMessages(ctx context.Context, conn *websocket.Conn, done chan<- *models.AttemptResult) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			done <- nil
			return
		}
		var msg models.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case models.ServerTranscript:
			log.Info().
				Str("committed", msg.Transcript.CommittedText).
				Str("pending", msg.Transcript.PendingPartialText).
				Msg("Transcript")
		case models.ServerError:
			log.Warn().Str("error", msg.Error).Msg("Server error")
		case models.ServerResult:
			done <- msg.Result
			return
		}
	}
}

func writeControl(ctx context.Context, conn *websocket.Conn, msg models.ControlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
