package app

import (
	"strings"
	"time"
)

type chatRule struct {
	keyword string
	reply   string
}

// Checked in order; the first keyword contained in the message wins.
var chatRules = []chatRule{
	{"hello", "👋 Hello! I can help you find hotels. Where are you going?"},
	{"bali", "🏝️ Bali has great resorts! Seminyak for luxury, Ubud for culture."},
	{"paris", "🗼 Paris hotels: Le Marais for charm, Champs-Élysées for luxury."},
	{"tokyo", "🗼 Tokyo: Shibuya for shopping, Shinjuku for nightlife."},
}

const chatDefaultReply = "🌍 Tell me your destination and budget for hotel recommendations."

type ChatReply struct {
	Reply     string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatService is the keyword travel assistant behind /v1/chat.
type ChatService struct {
	now func() time.Time
}

func NewChatService(now func() time.Time) *ChatService {
	if now == nil {
		now = time.Now
	}
	return &ChatService{now: now}
}

func (s *ChatService) Reply(message string) ChatReply {
	low := strings.ToLower(message)
	reply := chatDefaultReply
	for _, r := range chatRules {
		if strings.Contains(low, r.keyword) {
			reply = r.reply
			break
		}
	}
	return ChatReply{Reply: reply, Timestamp: s.now().UTC()}
}
