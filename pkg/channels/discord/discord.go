// Package discord provides the Discord transport.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/logger"
)

// ChannelID is the transport name used on the bus.
const ChannelID = "discord"

// Intents are the gateway intents the bot needs: guild metadata for the
// permission cache, guild and direct messages, and message content.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// session is the subset of *discordgo.Session the channel uses.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Channel implements the Discord transport.
type Channel struct {
	log     *logger.Logger
	bus     bus.Bus
	session session

	mu       sync.Mutex
	removers []func()
	running  bool
}

// NewChannel creates a new Discord channel for the given bot token.
func NewChannel(log *logger.Logger, token string, b bus.Bus) (*Channel, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = Intents

	return newChannel(log, b, s), nil
}

func newChannel(log *logger.Logger, b bus.Bus, s session) *Channel {
	return &Channel{
		log:     log,
		bus:     b,
		session: s,
	}
}

// ID returns the channel identifier.
func (c *Channel) ID() string {
	return ChannelID
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "Discord"
}

// IsEnabled returns whether the channel is enabled. Discord is the only
// transport, so it always is.
func (c *Channel) IsEnabled() bool {
	return true
}

// Start opens the gateway connection.
func (c *Channel) Start(ctx context.Context) error {
	c.log.Info("Starting Discord channel")

	c.mu.Lock()
	c.removers = append(c.removers,
		c.session.AddHandler(c.handleReady),
		c.session.AddHandler(c.handleMessage),
	)
	c.mu.Unlock()

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("opening discord connection: %w", err)
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	return nil
}

// Stop closes the gateway connection.
func (c *Channel) Stop(ctx context.Context) error {
	c.log.Info("Stopping Discord channel")

	c.mu.Lock()
	for _, remove := range c.removers {
		remove()
	}
	c.removers = nil
	wasRunning := c.running
	c.running = false
	c.mu.Unlock()

	if !wasRunning {
		return nil
	}
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("closing discord session: %w", err)
	}
	return nil
}

// Running reports whether the gateway connection is open.
func (c *Channel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Channel) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	c.log.Info("Connected to Discord as "+r.User.Username,
		zap.String("user_id", r.User.ID),
		zap.Int("guilds", len(r.Guilds)))
}

// handleMessage forwards every message not written by the bot itself.
// Deciding whether it is a command is the dispatcher's job.
func (c *Channel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	var perms int64
	if m.GuildID != "" {
		p, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID)
		if err != nil {
			c.log.Debug("Permissions unavailable",
				zap.String("user_id", m.Author.ID),
				zap.String("channel_id", m.ChannelID),
				zap.Error(err))
		}
		perms = p
	}

	if err := c.bus.SendInbound(toBusMessage(m.Message, perms)); err != nil {
		c.log.Error("Failed to send inbound message", zap.Error(err))
	}
}

// toBusMessage converts a Discord message. Member is set only when Discord
// supplied guild membership with the message.
func toBusMessage(m *discordgo.Message, perms int64) *bus.Message {
	msg := &bus.Message{
		ID:        m.ID,
		ChannelID: ChannelID,
		ChatID:    m.ChannelID,
		GuildID:   m.GuildID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Bot:       m.Author.Bot,
		Type:      bus.MessageTypeText,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if m.GuildID != "" && m.Member != nil {
		msg.Member = &bus.Member{
			RoleIDs:     append([]string(nil), m.Member.Roles...),
			Permissions: perms,
		}
	}
	return msg
}

// SendMessage delivers an outbound bus message to its Discord channel.
func (c *Channel) SendMessage(ctx context.Context, msg *bus.Message) error {
	if msg.ChatID == "" {
		return fmt.Errorf("outbound message %s has no chat id", msg.ID)
	}

	if len(msg.Embeds) == 0 {
		if msg.Content == "" {
			c.log.Debug("Skipping empty outbound message", zap.String("message_id", msg.ID))
			return nil
		}
		if _, err := c.session.ChannelMessageSend(msg.ChatID, msg.Content, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sending discord message: %w", err)
		}
		return nil
	}

	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  toDiscordEmbeds(msg.Embeds),
	}
	if _, err := c.session.ChannelMessageSendComplex(msg.ChatID, send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending discord embed: %w", err)
	}
	return nil
}

func toDiscordEmbeds(embeds []*bus.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		embed := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   f.Name,
				Value:  f.Value,
				Inline: f.Inline,
			})
		}
		out = append(out, embed)
	}
	return out
}
