package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	gstt "github.com/luiz-pereira/go-google-stt"
)

const (
	sampleRate      = 16000
	framesPerBuffer = 1024
)

func main() {
	var serverURL string
	var showInterim bool

	rootCmd := &cobra.Command{
		Use:   "stt-client",
		Short: "Stream microphone audio to an stt-server and print transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(serverURL, showInterim)
		},
	}
	rootCmd.Flags().StringVarP(&serverURL, "url", "u", "ws://localhost:8081/ws", "WebSocket server URL")
	rootCmd.Flags().BoolVar(&showInterim, "interim", false, "print interim (non-final) transcripts")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type client struct {
	conn        *websocket.Conn
	audioStream *portaudio.Stream
	audioBuffer []int16
	recent      *recentTranscripts
	showInterim bool
	wg          sync.WaitGroup
	log         *log.Logger
}

func run(serverURL string, showInterim bool) error {
	logger := log.New(os.Stderr)

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	audioBuffer := make([]int16, framesPerBuffer)
	audioStream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(audioBuffer), audioBuffer)
	if err != nil {
		return fmt.Errorf("open audio stream: %w", err)
	}
	defer audioStream.Close()

	if err := audioStream.Start(); err != nil {
		return fmt.Errorf("start audio stream: %w", err)
	}
	defer audioStream.Stop()

	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", serverURL, err)
	}
	defer conn.Close()

	c := &client{
		conn:        conn,
		audioStream: audioStream,
		audioBuffer: audioBuffer,
		recent:      newRecentTranscripts(8, 0.85),
		showInterim: showInterim,
		log:         logger,
	}

	fmt.Println("Recording... Press Ctrl+C to stop.")
	c.wg.Add(2)
	go c.readEvents()
	go c.sendAudio()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	conn.Close()
	c.wg.Wait()
	fmt.Println("\nDone.")
	return nil
}

func (c *client) readEvents() {
	defer c.wg.Done()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket read error", "err", err)
			}
			return
		}

		var ev gstt.WebSocketEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			c.log.Warn("bad event frame", "err", err)
			continue
		}
		c.display(ev)
	}
}

func (c *client) display(ev gstt.WebSocketEvent) {
	switch ev.Type {
	case "transcript":
		if !ev.IsFinal {
			if !c.showInterim || c.recent.Seen(ev.Content) {
				return
			}
		}
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), ev.Content)
	case "activity":
		c.log.Debug("speech activity", "kind", ev.Kind)
	case "timeout":
		c.log.Debug("stream idle")
	case "error":
		c.log.Error("stream error", "status", ev.Status, "message", ev.Message)
	}
}

func (c *client) sendAudio() {
	defer c.wg.Done()
	for {
		if err := c.audioStream.Read(); err != nil {
			c.log.Error("audio read error", "err", err)
			return
		}

		req := gstt.WebSocketRequest{Buf: int16ToBytes(c.audioBuffer)}
		if err := c.conn.WriteJSON(req); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				c.log.Error("websocket write error", "err", err)
			}
			return
		}
	}
}

// int16ToBytes renders samples as little-endian PCM.
func int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, v := range in {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
