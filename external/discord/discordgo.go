package discord

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/ko2bn/internal/discord"
)

// Discord rejects message content above this many characters.
const maxContentRunes = 2000

// Client posts archives over the REST API only; no gateway connection is opened.
type Client struct {
	session *discordgo.Session
}

func NewClient(token string) (discordpkg.Client, error) {
	if token == "" {
		return disabledClient{}, nil
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Client{session: s}, nil
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: truncateRunes(msg.Content, maxContentRunes),
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/plain; charset=utf-8", Reader: bytes.NewReader(msg.FileBody)},
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

type disabledClient struct{}

func (disabledClient) SendChannelMessageWithFile(discordpkg.FileMessage) error {
	return nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
