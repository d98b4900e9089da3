// Package report turns purge outcomes and dispatch results into chat replies
// and log records.
package report

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/cloudflare"
	"cachebuster/pkg/commands"
	"cachebuster/pkg/logger"
	"cachebuster/pkg/purge"
)

// Embed colors.
const (
	ColorSuccess  = 0x1F8B4C // dark green
	ColorFailure  = 0xE74C3C // red
	ColorRejected = 0xF1C40F // gold
)

// Discord embed limits. MaxEmbedsTotalLen counts the characters of every
// title, description, field name and field value in one message.
const (
	MaxEmbedFields    = 25
	MaxEmbeds         = 10
	MaxFieldValueLen  = 1024
	MaxEmbedsTotalLen = 6000
)

// truncatedReserve is kept free so the "not shown" field always fits.
const truncatedReserve = 64

// GenericFailure is sent when a handler fails; details go to the log only.
const GenericFailure = "Command failed. Check console output for more information."

// Reporter renders outcomes. It is stateless apart from the logger.
type Reporter struct {
	log *logger.Logger
}

// NewReporter creates a reporter.
func NewReporter(log *logger.Logger) *Reporter {
	return &Reporter{log: log}
}

// RenderOutcome logs a purge outcome and builds the reply for it.
// TransportFailed is returned as an error so the dispatcher reports it
// as a handler failure.
func (r *Reporter) RenderOutcome(inv *commands.Invocation, out purge.Outcome) (commands.Response, error) {
	log := r.log
	if inv != nil {
		log = log.WithFields(zap.String("invocation_id", inv.ID), zap.String("user_id", inv.UserID))
	}

	switch o := out.(type) {
	case purge.ValidationFailed:
		log.Info("Rejected purge outside the allowed prefix",
			zap.String("url", o.URL),
			zap.String("prefix", o.Prefix))
		return commands.Response{Embeds: []*bus.Embed{{
			Title:       "You cannot purge this file!",
			Description: fmt.Sprintf("URLs must begin with `%s`.", o.Prefix),
			Color:       ColorRejected,
		}}}, nil

	case purge.Completed:
		if o.Result.Success {
			log.Info("Purged file cache", zap.String("url", o.URL))
			return commands.Response{Embeds: []*bus.Embed{{
				Title:       "Successfully purged cache!",
				Description: fmt.Sprintf("Cache for `%s` has been purged.", o.URL),
				Color:       ColorSuccess,
			}}}, nil
		}

		log.Error("Failed to purge file cache",
			zap.String("url", o.URL),
			zap.Any("cf_errors", o.Result.Errors))
		return commands.Response{Embeds: r.errorEmbeds(o.Result.Errors)}, nil

	case purge.TransportFailed:
		return commands.Response{}, o

	default:
		return commands.Response{}, fmt.Errorf("unknown purge outcome %T", out)
	}
}

// errorEmbeds lists API errors in order, one field each, split across
// embeds at MaxEmbedFields. Errors past MaxEmbeds or MaxEmbedsTotalLen are
// counted in a final field instead.
func (r *Reporter) errorEmbeds(apiErrors []cloudflare.APIError) []*bus.Embed {
	newEmbed := func() *bus.Embed {
		return &bus.Embed{
			Title:       "One or more errors occurred while clearing cache!",
			Description: "CloudFlare reported the following errors:",
			Color:       ColorFailure,
		}
	}

	embeds := []*bus.Embed{newEmbed()}
	total := embedLen(embeds[0])
	for i, apiErr := range apiErrors {
		field := &bus.EmbedField{
			Name:  fmt.Sprintf("Error code %d", apiErr.Code),
			Value: fieldValue(apiErr.Message),
		}
		need := fieldLen(field)

		current := embeds[len(embeds)-1]
		split := len(current.Fields) == MaxEmbedFields
		if split {
			need += embedLen(newEmbed())
		}
		if (split && len(embeds) == MaxEmbeds) || total+need > MaxEmbedsTotalLen-truncatedReserve {
			dropped := len(apiErrors) - i
			r.log.Warn("Too many purge errors to display", zap.Int("dropped", dropped))
			truncateFields(current, dropped)
			break
		}

		if split {
			current = newEmbed()
			embeds = append(embeds, current)
		}
		current.Fields = append(current.Fields, field)
		total += need
	}
	return embeds
}

// truncateFields closes e with a field counting the errors left out. When e
// has no room left the last shown error gives up its slot.
func truncateFields(e *bus.Embed, dropped int) {
	if len(e.Fields) == MaxEmbedFields {
		e.Fields = e.Fields[:len(e.Fields)-1]
		dropped++
	}
	e.Fields = append(e.Fields, &bus.EmbedField{
		Name:  "…",
		Value: fmt.Sprintf("%d more errors not shown", dropped),
	})
}

func embedLen(e *bus.Embed) int {
	n := utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
	for _, f := range e.Fields {
		n += fieldLen(f)
	}
	return n
}

func fieldLen(f *bus.EmbedField) int {
	return utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
}

func fieldValue(s string) string {
	if s == "" {
		return "-"
	}
	if runes := []rune(s); len(runes) > MaxFieldValueLen {
		return string(runes[:MaxFieldValueLen-1]) + "…"
	}
	return s
}

// Reply logs a dispatch result and builds the outbound message for it.
// It returns nil for ignored messages.
func (r *Reporter) Reply(msg *bus.Message, res commands.Result) *bus.Message {
	if res.Kind == commands.ResultIgnored {
		return nil
	}

	log := r.log
	if res.Invocation != nil {
		log = log.WithFields(
			zap.String("invocation_id", res.Invocation.ID),
			zap.String("user_id", res.Invocation.UserID),
			zap.String("guild_id", res.Invocation.GuildID),
		)
	}
	name := ""
	if res.Command != nil {
		name = res.Command.Name
	}

	switch res.Kind {
	case commands.ResultReplied:
		log.Info(fmt.Sprintf("Processed command '%s'", name))
		return r.reply(msg, res.Response.Content, res.Response.Embeds)

	case commands.ResultDispatchError:
		text := "Command failed with reason: " + dispatchMessage(res.Err)
		log.Info("Command rejected",
			zap.String("command", name),
			zap.Error(res.Err))
		return r.reply(msg, text, nil)

	default:
		log.Error(fmt.Sprintf("Command '%s' returned error", name), zap.Error(res.Err))
		return r.reply(msg, GenericFailure, nil)
	}
}

func dispatchMessage(err error) string {
	var derr *commands.DispatchError
	if errors.As(err, &derr) {
		return derr.Message()
	}
	return (&commands.DispatchError{Kind: commands.KindUnknown}).Message()
}

func (r *Reporter) reply(msg *bus.Message, content string, embeds []*bus.Embed) *bus.Message {
	return &bus.Message{
		ID:        uuid.NewString(),
		ChannelID: msg.ChannelID,
		ChatID:    msg.ChatID,
		GuildID:   msg.GuildID,
		Type:      bus.MessageTypeReply,
		Content:   content,
		Embeds:    embeds,
		Timestamp: time.Now(),
		ReplyTo:   msg.ID,
	}
}
