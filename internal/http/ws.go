package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pronunciation-practice-service/internal/app"
	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/practice"
)

// maxFrameBytes bounds a single websocket frame (~8s of 16kHz float32 audio).
const maxFrameBytes = 512 * 1024

// practiceSocket upgrades to a websocket carrying one practice session.
// Text frames are JSON control messages, binary frames are float32
// little-endian PCM. The server answers with JSON ServerMessages.
func practiceSocket(application *app.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: application.Cfg.Service.OriginPatterns,
		})
		if err != nil {
			logger := logging.WithComponent("practice-ws")
			logger.Warn().Err(err).Msg("Websocket upgrade failed")
			return
		}
		conn.SetReadLimit(maxFrameBytes)

		sess, err := application.NewSession()
		if err != nil {
			conn.Close(websocket.StatusInternalError, "session unavailable")
			return
		}
		defer sess.Close()

		logger := logging.WithSession(sess.ID())
		logger.Info().Str("remoteAddr", r.RemoteAddr).Msg("Practice websocket connected")

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			return pushUpdates(ctx, conn, sess)
		})
		g.Go(func() error {
			return readFrames(ctx, conn, sess, application, logger)
		})

		err = g.Wait()
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			conn.Close(websocket.StatusNormalClosure, "")
		default:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("Practice websocket closed with error")
			}
			conn.CloseNow()
		}
		logger.Info().Msg("Practice websocket disconnected")
	}
}

func pushUpdates(ctx context.Context, conn *websocket.Conn, sess *practice.Session) error {
	updates := sess.Updates()
	for {
		select {
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeMessage(ctx, conn, msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func readFrames(ctx context.Context, conn *websocket.Conn, sess *practice.Session, application *app.Application, logger zerolog.Logger) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		switch typ {
		case websocket.MessageBinary:
			samples, err := audio.DecodeFloat32(data)
			if err != nil {
				if werr := sendError(ctx, conn, err.Error()); werr != nil {
					return werr
				}
				continue
			}
			err = sess.SendAudio(ctx, samples)
			if err != nil && !errors.Is(err, practice.ErrNotListening) {
				if werr := sendError(ctx, conn, err.Error()); werr != nil {
					return werr
				}
			}

		case websocket.MessageText:
			if err := handleControl(ctx, sess, application, data); err != nil {
				logger.Debug().Err(err).Msg("Control message rejected")
				if werr := sendError(ctx, conn, err.Error()); werr != nil {
					return werr
				}
			}
		}
	}
}

func handleControl(ctx context.Context, sess *practice.Session, application *app.Application, data []byte) error {
	var msg models.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errors.New("invalid control message")
	}
	if err := application.Validate(msg); err != nil {
		return err
	}

	switch msg.Type {
	case models.ControlStart:
		reference, err := application.ResolveReference(msg)
		if err != nil {
			return err
		}
		return sess.Start(ctx, reference)
	case models.ControlPause:
		return sess.Pause()
	case models.ControlResume:
		return sess.Resume()
	case models.ControlStop:
		// The result reaches the client through the update stream.
		_, err := sess.Stop(ctx)
		return err
	case models.ControlReset:
		sess.Reset()
		return nil
	}
	return nil
}

func sendError(ctx context.Context, conn *websocket.Conn, msg string) error {
	return writeMessage(ctx, conn, models.ServerMessage{Type: models.ServerError, Error: msg})
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg models.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
