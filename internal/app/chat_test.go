package app_test

import (
	"strings"
	"testing"
	"time"

	"hotel_agent/internal/app"
)

func TestChatReply(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	c := app.NewChatService(func() time.Time { return now })

	cases := []struct{ msg, want string }{
		{"Hello there", "Hello!"},
		{"thinking about BALI in May", "Seminyak"},
		{"paris or tokyo?", "Le Marais"}, // first rule in table order wins
		{"Tokyo nightlife", "Shinjuku"},
		{"somewhere warm", "destination and budget"},
	}
	for _, tc := range cases {
		got := c.Reply(tc.msg)
		if !strings.Contains(got.Reply, tc.want) {
			t.Errorf("%q -> %q, want substring %q", tc.msg, got.Reply, tc.want)
		}
		if !got.Timestamp.Equal(now) {
			t.Errorf("timestamp %v", got.Timestamp)
		}
	}
}
