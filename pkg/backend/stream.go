// Copyright 2024-2026 Aiku AI

package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"
)

// eventStream is the websocket event source. An interface so tests can drive
// the serve loop from a plain channel.
type eventStream interface {
	Events() <-chan *model.WebSocketEvent
	Close()
}

// wsEventStream adapts model.WebSocketClient to eventStream.
type wsEventStream struct {
	ws *model.WebSocketClient
}

func (s *wsEventStream) Events() <-chan *model.WebSocketEvent {
	return s.ws.EventChannel
}

func (s *wsEventStream) Close() {
	s.ws.Close()
}

func dialWebSocket(wsURL, authToken string) (eventStream, error) {
	ws, err := model.NewWebSocketClient4(wsURL, authToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create websocket client: %w", err)
	}
	ws.Listen()
	return &wsEventStream{ws: ws}, nil
}

// httpToWS converts an HTTP(S) URL to a WS(S) URL.
func httpToWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// Serve runs the connection lifecycle: bootstrap the session, open the event
// stream, and process events strictly in arrival order until the context is
// cancelled, Stop is called, or the transport fails. The disconnect callback
// fires exactly once on every exit path. Reconnection policy belongs to the
// caller; each new hello after a reconnect re-emits the online presence.
func (b *Backend) Serve(ctx context.Context) error {
	defer b.notifyDisconnected()

	if err := b.bootstrap(ctx); err != nil {
		return err
	}

	stream, err := b.openStream(httpToWS(b.cfg.APIURL()), b.authToken())
	if err != nil {
		b.log.Error().Err(err).Msg("WebSocket connection failed")
		return err
	}
	defer stream.Close()

	b.log.Info().
		Str("team_id", b.teamID).
		Str("user_id", b.self.UserID).
		Msg("Listening for events")

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("Interrupt received, shutting down")
			return nil
		case <-b.stopChan:
			b.log.Info().Msg("Stop requested, shutting down")
			return nil
		case evt, ok := <-stream.Events():
			if !ok {
				b.log.Error().Msg("Event stream closed by transport")
				return fmt.Errorf("event stream closed")
			}
			if evt == nil {
				continue
			}
			b.handleEvent(ctx, evt)
		}
	}
}

// bootstrap authenticates the session, binds the team and resolves the bot's
// own identity.
func (b *Backend) bootstrap(ctx context.Context) error {
	if b.cfg.Password != "" {
		if _, _, err := b.client.Login(ctx, b.cfg.Login, b.cfg.Password); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}

	team, _, err := b.client.GetTeamByName(ctx, b.cfg.Team, "")
	if err != nil {
		return fmt.Errorf("failed to resolve team %q: %w", b.cfg.Team, err)
	}
	b.teamID = team.Id

	me, _, err := b.client.GetMe(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to resolve own identity: %w", err)
	}
	b.self = Person{UserID: me.Id, TeamID: b.teamID}

	b.log.Info().
		Str("username", me.Username).
		Str("user_id", me.Id).
		Str("team", b.cfg.Team).
		Msg("Authenticated")
	return nil
}

func (b *Backend) notifyDisconnected() {
	b.disconnected.Do(func() {
		b.log.Debug().Msg("Triggering disconnect callback")
		b.sink.OnDisconnected()
	})
}
