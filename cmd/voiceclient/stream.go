package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"calma/backend/internal/audio"
	pkgws "calma/backend/pkg/ws"
)

type streamOptions struct {
	server  string
	profile string
	in      string
	out     string
	format  string
	frame   int
	idle    time.Duration
}

func newStreamCmd() *cobra.Command {
	var opts streamOptions
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Send a 16 kHz mono recording and save the spoken reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runStream(ctx, opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "ws://localhost:8081/ws/voice", "voice socket URL")
	f.StringVar(&opts.profile, "profile", "", "profile id")
	f.StringVar(&opts.in, "in", "", "raw mono input at 16 kHz")
	f.StringVar(&opts.format, "format", pkgws.FormatPCM16, "input sample format: pcm16 or f32")
	f.StringVar(&opts.out, "out", "reply.pcm", "where to write the PCM16 reply at 24 kHz")
	f.IntVar(&opts.frame, "frame", audio.DefaultFrameSize, "samples per audio message")
	f.DurationVar(&opts.idle, "idle", 5*time.Second, "stop after this long without reply audio")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func runStream(ctx context.Context, opts streamOptions, stdout io.Writer) error {
	if opts.format != pkgws.FormatPCM16 && opts.format != pkgws.FormatFloat32 {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	pcm, err := os.ReadFile(opts.in)
	if err != nil {
		return err
	}
	frames, err := splitFrames(pcm, opts.frame, sampleWidth(opts.format))
	if err != nil {
		return err
	}

	u, err := url.Parse(opts.server)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("profileId", opts.profile)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	defer conn.Close()

	out, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := send(conn, pkgws.TypeConnect, nil); err != nil {
		return err
	}

	incoming := make(chan pkgws.Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg pkgws.Message
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			incoming <- msg
		}
	}()

	connected := false
	next := 0
	pace := time.NewTicker(audio.Duration(opts.frame, audio.InputSampleRate))
	defer pace.Stop()
	idle := time.NewTimer(opts.idle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return hangUp(conn)

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err

		case <-pace.C:
			if !connected || next >= len(frames) {
				continue
			}
			if err := send(conn, pkgws.TypeAudio, pkgws.AudioIn{Data: frames[next], Format: opts.format}); err != nil {
				return err
			}
			next++

		case <-idle.C:
			if next >= len(frames) {
				fmt.Fprintln(stdout, "no more reply audio, hanging up")
				return hangUp(conn)
			}
			idle.Reset(opts.idle)

		case msg := <-incoming:
			switch msg.Type {
			case pkgws.TypeState:
				var st pkgws.State
				if err := json.Unmarshal(msg.Content, &st); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "state: %s\n", st.State)
				switch st.State {
				case "connected":
					connected = true
				case "idle":
					if connected {
						return nil
					}
				}
			case pkgws.TypeAudio:
				var chunk pkgws.AudioOut
				if err := json.Unmarshal(msg.Content, &chunk); err != nil {
					return err
				}
				if _, err := out.Write(chunk.Data); err != nil {
					return err
				}
				idle.Reset(opts.idle)
			case pkgws.TypeTranscript:
				var line pkgws.ChatMessage
				if err := json.Unmarshal(msg.Content, &line); err == nil {
					fmt.Fprintf(stdout, "%s: %s\n", line.Role, line.Text)
				}
			case pkgws.TypeError:
				var e pkgws.Error
				_ = json.Unmarshal(msg.Content, &e)
				return fmt.Errorf("server error %s: %s", e.Code, e.Message)
			}
		}
	}
}

func sampleWidth(format string) int {
	if format == pkgws.FormatFloat32 {
		return 4
	}
	return 2
}

// splitFrames cuts raw samples into messages of frame samples; the last may
// be short.
func splitFrames(raw []byte, frame, width int) ([][]byte, error) {
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("input is not a whole number of %d byte samples", width)
	}
	if frame <= 0 {
		return nil, errors.New("frame size must be positive")
	}
	pcm := raw
	size := frame * width
	frames := make([][]byte, 0, len(pcm)/size+1)
	for len(pcm) > 0 {
		n := min(size, len(pcm))
		frames = append(frames, pcm[:n])
		pcm = pcm[n:]
	}
	return frames, nil
}

func send(conn *websocket.Conn, msgType string, content any) error {
	data, err := pkgws.Encode(msgType, content)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func hangUp(conn *websocket.Conn) error {
	if err := send(conn, pkgws.TypeDisconnect, nil); err != nil {
		return err
	}
	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
