// Copyright 2024-2026 Aiku AI

package main

import (
	"github.com/rs/zerolog"

	"github.com/aiku/mattermost-botcore/pkg/backend"
)

// logSink is the standalone-daemon sink: it logs every normalized event.
// Embedders provide their own backend.Sink instead.
type logSink struct {
	log zerolog.Logger
}

var _ backend.Sink = (*logSink)(nil)

func (s *logSink) OnMessage(msg *backend.Message) {
	s.log.Info().
		Str("from", msg.From.Key()).
		Str("to", msg.To.Key()).
		Bool("direct", msg.IsDirect()).
		Int("attachments", len(msg.Attachments)).
		Str("permalink", msg.Permalink).
		Msg(msg.Body)
}

func (s *logSink) OnMention(msg *backend.Message, mentioned []backend.Person) {
	ids := make([]string, len(mentioned))
	for i, p := range mentioned {
		ids[i] = p.UserID
	}
	s.log.Info().
		Str("from", msg.From.Key()).
		Strs("mentioned", ids).
		Msg("Mention")
}

func (s *logSink) OnPresence(p backend.Presence) {
	s.log.Debug().
		Str("user_id", p.Who.UserID).
		Str("status", string(p.Status)).
		Msg("Presence change")
}

func (s *logSink) OnConnected() {
	s.log.Info().Msg("Connected")
}

func (s *logSink) OnDisconnected() {
	s.log.Info().Msg("Disconnected")
}

func (s *logSink) OnRoomJoined(room *backend.Room) {
	s.log.Info().Str("room", room.Key()).Msg("Joined room")
}

func (s *logSink) OnRoomLeft(room *backend.Room) {
	s.log.Info().Str("room", room.Key()).Msg("Left room")
}
