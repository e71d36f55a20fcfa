package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/wricardo/quizrelay/game/relay"
	"github.com/wricardo/quizrelay/game/service"
	"github.com/wricardo/quizrelay/transport/websocket"
)

var errTimeout = errors.New("timed out waiting for frame")

const defaultTimeout = 10 * time.Second

// Client talks to the relay REST API
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) CreateSession(ctx context.Context) (*service.SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/sessions", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create session failed: %s - %s", resp.Status, string(body))
	}

	var info service.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}
	return &info, nil
}

// WebSocketURL derives the relay endpoint from the API base URL
func (c *Client) WebSocketURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// participant is one websocket connection taking part in a session
type participant struct {
	id   string
	conn *gws.Conn
}

func dial(ctx context.Context, wsURL string) (*participant, error) {
	conn, _, err := gws.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	p := &participant{conn: conn}
	hello, err := p.readUntil(time.Now().Add(5*time.Second), func(f websocket.ServerFrame) bool {
		return f.Type == websocket.FrameConnected
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("await connection id: %w", err)
	}
	p.id = hello.ConnectionID
	return p, nil
}

func (p *participant) subscribe(destination string) error {
	return p.conn.WriteJSON(websocket.ClientFrame{Command: websocket.CommandSubscribe, Destination: destination})
}

func (p *participant) send(destination string, payload []byte) error {
	return p.conn.WriteJSON(websocket.ClientFrame{
		Command:     websocket.CommandSend,
		Destination: destination,
		Payload:     json.RawMessage(payload),
	})
}

// awaitRole waits for the role notification and reports whether it made
// this participant host
func (p *participant) awaitRole(deadline time.Time) (bool, error) {
	frame, err := p.readUntil(deadline, func(f websocket.ServerFrame) bool {
		return f.Destination == relay.PrivateQueue
	})
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(frame.Payload, "isHost").Bool(), nil
}

// readUntil reads frames until match accepts one or deadline passes
func (p *participant) readUntil(deadline time.Time, match func(websocket.ServerFrame) bool) (websocket.ServerFrame, error) {
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return websocket.ServerFrame{}, err
	}
	for {
		var frame websocket.ServerFrame
		if err := p.conn.ReadJSON(&frame); err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return frame, errTimeout
			}
			return frame, err
		}
		if match(frame) {
			return frame, nil
		}
	}
}

func (p *participant) close() {
	p.conn.Close()
}

// relayed reports whether frame carries relayed actions rather than a roster
// update
func relayed(frame websocket.ServerFrame) bool {
	return frame.Type == websocket.FrameMessage && gjson.GetBytes(frame.Payload, "0.data.cid").Exists()
}

// Options controls one bot run
type Options struct {
	BaseURL string
	Players int
	Answers int
	Timeout time.Duration
}

// Report summarizes one bot run
type Report struct {
	Pin                string         `json:"pin"`
	HostID             string         `json:"hostId"`
	Players            int            `json:"players"`
	QuestionsDelivered int            `json:"questionsDelivered"`
	AnswersSent        int            `json:"answersSent"`
	AnswersReceived    int            `json:"answersReceived"`
	PerPlayer          map[string]int `json:"perPlayer"`
	Duration           time.Duration  `json:"duration"`
}

// Bot drives a host and a group of players through one question
type Bot struct {
	opts   Options
	client *Client
	logger zerolog.Logger
}

func NewBot(opts Options, logger zerolog.Logger) *Bot {
	if opts.Players < 1 {
		opts.Players = 1
	}
	if opts.Answers < 1 {
		opts.Answers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Bot{opts: opts, client: NewClient(opts.BaseURL), logger: logger}
}

// Run creates a session, joins it with one host and the configured players,
// broadcasts a question and counts the answers relayed back to the host.
func (b *Bot) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	deadline := start.Add(b.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	info, err := b.client.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	log := b.logger.With().Str("pin", info.Pin).Logger()
	log.Info().Msg("Session created")

	wsURL := b.client.WebSocketURL()

	host, err := dial(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	defer host.close()

	if err := host.subscribe(info.Channels.Host); err != nil {
		return nil, err
	}
	isHost, err := host.awaitRole(deadline)
	if err != nil {
		return nil, fmt.Errorf("host role: %w", err)
	}
	if !isHost {
		return nil, fmt.Errorf("first subscriber %s was not made host", host.id)
	}
	log.Info().Str("hostId", host.id).Msg("Host assigned")

	players := make([]*participant, 0, b.opts.Players)
	defer func() {
		for _, p := range players {
			p.close()
		}
	}()
	for i := 0; i < b.opts.Players; i++ {
		p, err := dial(ctx, wsURL)
		if err != nil {
			return nil, err
		}
		players = append(players, p)

		if err := p.subscribe(info.Channels.Players); err != nil {
			return nil, err
		}
		if isHost, err := p.awaitRole(deadline); err != nil {
			return nil, fmt.Errorf("player %d role: %w", i, err)
		} else if isHost {
			return nil, fmt.Errorf("player %s was made host", p.id)
		}
	}
	log.Info().Int("players", len(players)).Msg("Players joined")

	report := &Report{
		Pin:       info.Pin,
		HostID:    host.id,
		Players:   len(players),
		PerPlayer: make(map[string]int, len(players)),
	}
	expected := len(players) * b.opts.Answers

	// Host collects answers while players respond.
	received := make(chan websocket.ServerFrame, expected)
	hostDone := make(chan error, 1)
	go func() {
		for n := 0; n < expected; n++ {
			frame, err := host.readUntil(deadline, relayed)
			if err != nil {
				hostDone <- err
				return
			}
			received <- frame
		}
		hostDone <- nil
	}()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		delivered int
		sent      int
	)
	for i, p := range players {
		wg.Add(1)
		go func(i int, p *participant) {
			defer wg.Done()

			frame, err := p.readUntil(deadline, relayed)
			if err != nil {
				log.Warn().Err(err).Str("playerId", p.id).Msg("Question not delivered")
				return
			}
			if cid := gjson.GetBytes(frame.Payload, "0.data.cid").String(); cid != host.id {
				log.Warn().Str("cid", cid).Msg("Question not stamped with host id")
			}

			n := 0
			for a := 0; a < b.opts.Answers; a++ {
				answer := fmt.Sprintf(`[{"data":{"question":1,"answer":%d}}]`, (i+a)%4)
				if err := p.send(info.Channels.Action, []byte(answer)); err != nil {
					log.Warn().Err(err).Str("playerId", p.id).Msg("Failed to send answer")
					break
				}
				n++
			}

			mu.Lock()
			delivered++
			sent += n
			mu.Unlock()
		}(i, p)
	}

	if err := host.send(info.Channels.Action, []byte(`[{"data":{"question":1,"text":"What is 2+2?","choices":[3,4,5,22]}}]`)); err != nil {
		return nil, fmt.Errorf("send question: %w", err)
	}

	wg.Wait()
	hostErr := <-hostDone
	close(received)

	for frame := range received {
		gjson.GetBytes(frame.Payload, "#.data.cid").ForEach(func(_, cid gjson.Result) bool {
			report.PerPlayer[cid.String()]++
			report.AnswersReceived++
			return true
		})
	}
	report.QuestionsDelivered = delivered
	report.AnswersSent = sent
	report.Duration = time.Since(start)

	if hostErr != nil && !errors.Is(hostErr, errTimeout) {
		return report, fmt.Errorf("host read: %w", hostErr)
	}
	log.Info().
		Int("answersSent", report.AnswersSent).
		Int("answersReceived", report.AnswersReceived).
		Dur("duration", report.Duration).
		Msg("Run complete")
	return report, nil
}
