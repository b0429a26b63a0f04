// Copyright 2024-2026 Aiku AI

package backend

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"
)

// recordingSink captures every callback for test assertions.
type recordingSink struct {
	mu           sync.Mutex
	messages     []*Message
	mentions     [][]Person
	presences    []Presence
	connected    int
	disconnected int
	joined       []*Room
	left         []*Room
}

func (s *recordingSink) OnMessage(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) OnMention(_ *Message, mentioned []Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mentions = append(s.mentions, mentioned)
}

func (s *recordingSink) OnPresence(p Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presences = append(s.presences, p)
}

func (s *recordingSink) OnConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected++
}

func (s *recordingSink) OnDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected++
}

func (s *recordingSink) OnRoomJoined(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, room)
}

func (s *recordingSink) OnRoomLeft(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, room)
}

// callbackCount returns the total number of callbacks of any kind, for
// asserting that an event produced no output at all.
func (s *recordingSink) callbackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages) + len(s.mentions) + len(s.presences) +
		s.connected + s.disconnected + len(s.joined) + len(s.left)
}

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Body   string
}

// fakeMM wraps an httptest.Server simulating the Mattermost API. It records
// calls (for cache-hit call-count assertions) and serves canned responses.
type fakeMM struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// Users maps user ID to model.User.
	Users map[string]*model.User
	// UsersByName maps username to model.User.
	UsersByName map[string]*model.User
	// Channels maps channel ID to model.Channel.
	Channels map[string]*model.Channel
	// ChannelsByName maps channel name to model.Channel.
	ChannelsByName map[string]*model.Channel
	// DirectChannels maps the second member's user ID to the direct channel.
	DirectChannels map[string]*model.Channel
	// ChannelMembers maps channel ID to member list.
	ChannelMembers map[string]model.ChannelMembers
	// Team is returned for team-by-name lookups.
	Team *model.Team
	// TeamStats is returned for team stats lookups.
	TeamStats *model.TeamStats
	// UsersNotInChannel is returned for the not-in-channel user listing.
	UsersNotInChannel []*model.User
	// TeamChannels is the joined channel list for the bound team.
	TeamChannels []*model.Channel
	// PublicChannels is the public channel list for the bound team.
	PublicChannels []*model.Channel
	// FailEndpoints causes paths containing a key to return 500.
	FailEndpoints map[string]bool
}

func newFakeMM() *fakeMM {
	f := &fakeMM{
		Users:          make(map[string]*model.User),
		UsersByName:    make(map[string]*model.User),
		Channels:       make(map[string]*model.Channel),
		ChannelsByName: make(map[string]*model.Channel),
		DirectChannels: make(map[string]*model.Channel),
		ChannelMembers: make(map[string]model.ChannelMembers),
		FailEndpoints:  make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeMM) Close() {
	f.Server.Close()
}

func (f *fakeMM) record(method, path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{Method: method, Path: path, Body: body})
}

func (f *fakeMM) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

// CountPath returns how many recorded calls contain sub in their path.
func (f *fakeMM) CountPath(sub string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c.Path, sub) {
			n++
		}
	}
	return n
}

func (f *fakeMM) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.record(r.Method, r.URL.Path, string(body))

	for sub := range f.FailEndpoints {
		if strings.Contains(r.URL.Path, sub) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "fake error"})
			return
		}
	}

	// Segments after the /api/v4 prefix.
	seg := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v4"), "/"), "/")

	switch {
	// POST /users/login
	case r.Method == "POST" && pathIs(seg, "users", "login"):
		w.Header().Set(model.HeaderToken, "session-token")
		me, ok := f.Users["my-user-id"]
		if !ok {
			me = &model.User{Id: "my-user-id", Username: "testbot"}
		}
		_ = json.NewEncoder(w).Encode(me)

	// POST /users/logout
	case r.Method == "POST" && pathIs(seg, "users", "logout"):
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	// GET /users/me
	case r.Method == "GET" && pathIs(seg, "users", "me"):
		if u, ok := f.Users["my-user-id"]; ok {
			_ = json.NewEncoder(w).Encode(u)
			return
		}
		notFound(w)

	// GET /users/username/{name}
	case r.Method == "GET" && len(seg) == 3 && seg[0] == "users" && seg[1] == "username":
		if u, ok := f.UsersByName[seg[2]]; ok {
			_ = json.NewEncoder(w).Encode(u)
			return
		}
		notFound(w)

	// GET /users/{id}/teams/{tid}/channels
	case r.Method == "GET" && len(seg) == 5 && seg[0] == "users" && seg[2] == "teams" && seg[4] == "channels":
		_ = json.NewEncoder(w).Encode(f.TeamChannels)

	// GET /users?not_in_channel=...
	case r.Method == "GET" && pathIs(seg, "users"):
		_ = json.NewEncoder(w).Encode(f.UsersNotInChannel)

	// GET /users/{id}
	case r.Method == "GET" && len(seg) == 2 && seg[0] == "users":
		if u, ok := f.Users[seg[1]]; ok {
			_ = json.NewEncoder(w).Encode(u)
			return
		}
		notFound(w)

	// GET /teams/name/{name}
	case r.Method == "GET" && len(seg) == 3 && seg[0] == "teams" && seg[1] == "name":
		if f.Team != nil && f.Team.Name == seg[2] {
			_ = json.NewEncoder(w).Encode(f.Team)
			return
		}
		notFound(w)

	// GET /teams/{id}/stats
	case r.Method == "GET" && len(seg) == 3 && seg[0] == "teams" && seg[2] == "stats":
		_ = json.NewEncoder(w).Encode(f.TeamStats)

	// GET /teams/{id}/channels/name/{name}
	case r.Method == "GET" && len(seg) == 5 && seg[0] == "teams" && seg[2] == "channels" && seg[3] == "name":
		if ch, ok := f.ChannelsByName[seg[4]]; ok {
			_ = json.NewEncoder(w).Encode(ch)
			return
		}
		notFound(w)

	// GET /teams/{id}/channels
	case r.Method == "GET" && len(seg) == 3 && seg[0] == "teams" && seg[2] == "channels":
		_ = json.NewEncoder(w).Encode(f.PublicChannels)

	// POST /channels/direct
	case r.Method == "POST" && pathIs(seg, "channels", "direct"):
		var pair []string
		_ = json.Unmarshal([]byte(body), &pair)
		if len(pair) == 2 {
			if ch, ok := f.DirectChannels[pair[1]]; ok {
				_ = json.NewEncoder(w).Encode(ch)
				return
			}
		}
		notFound(w)

	// POST /channels
	case r.Method == "POST" && pathIs(seg, "channels"):
		var ch model.Channel
		_ = json.Unmarshal([]byte(body), &ch)
		ch.Id = "created-channel-id"
		_ = json.NewEncoder(w).Encode(&ch)

	// GET /channels/{id}/members
	case r.Method == "GET" && len(seg) == 3 && seg[0] == "channels" && seg[2] == "members":
		_ = json.NewEncoder(w).Encode(f.ChannelMembers[seg[1]])

	// POST /channels/{id}/members
	case r.Method == "POST" && len(seg) == 3 && seg[0] == "channels" && seg[2] == "members":
		var member model.ChannelMember
		_ = json.Unmarshal([]byte(body), &member)
		member.ChannelId = seg[1]
		_ = json.NewEncoder(w).Encode(&member)

	// DELETE /channels/{id}/members/{uid}
	case r.Method == "DELETE" && len(seg) == 4 && seg[0] == "channels" && seg[2] == "members":
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	// PUT /channels/{id}
	case r.Method == "PUT" && len(seg) == 2 && seg[0] == "channels":
		var ch model.Channel
		_ = json.Unmarshal([]byte(body), &ch)
		_ = json.NewEncoder(w).Encode(&ch)

	// DELETE /channels/{id}
	case r.Method == "DELETE" && len(seg) == 2 && seg[0] == "channels":
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	// GET /channels/{id}
	case r.Method == "GET" && len(seg) == 2 && seg[0] == "channels":
		if ch, ok := f.Channels[seg[1]]; ok {
			_ = json.NewEncoder(w).Encode(ch)
			return
		}
		notFound(w)

	// POST /posts
	case r.Method == "POST" && pathIs(seg, "posts"):
		var post model.Post
		_ = json.Unmarshal([]byte(body), &post)
		post.Id = "created-post-id"
		_ = json.NewEncoder(w).Encode(&post)

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "not found: " + r.URL.Path})
	}
}

func pathIs(seg []string, want ...string) bool {
	if len(seg) != len(want) {
		return false
	}
	for i := range want {
		if seg[i] != want[i] {
			return false
		}
	}
	return true
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
}

// newTestBackend creates a bootstrapped Backend wired to a fake server and a
// recording sink. The bot identity is my-user-id on team my-team-id.
func newTestBackend(t *testing.T, f *fakeMM) (*Backend, *recordingSink) {
	t.Helper()
	client := model.NewAPIv4Client(f.Server.URL)
	client.SetToken("test-token")

	sink := &recordingSink{}
	cfg := Config{
		Server: "mm.test",
		Scheme: "http",
		Port:   8065,
		Team:   "testteam",
		Token:  "test-token",
	}
	b := newBackend(cfg, client, sink, zerolog.Nop())
	b.self = Person{UserID: "my-user-id", TeamID: "my-team-id"}
	b.teamID = "my-team-id"
	b.authToken = func() string { return "test-token" }
	return b, sink
}

// newWebSocketEvent builds a websocket event with the broadcast envelope
// carrying the given channel and user IDs.
func newWebSocketEvent(eventType model.WebsocketEventType, channelID, userID string, data map[string]any) *model.WebSocketEvent {
	evt := model.NewWebSocketEvent(eventType, "", channelID, userID, nil, "")
	return evt.SetData(data)
}

// fakeStream drives the serve loop from a plain channel.
type fakeStream struct {
	ch        chan *model.WebSocketEvent
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan *model.WebSocketEvent, 16)}
}

func (s *fakeStream) Events() <-chan *model.WebSocketEvent {
	return s.ch
}

func (s *fakeStream) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}
