// Package mock provides a recording Discord session for tests.
package mock

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Session records every call made through the discord.Session interface.
// It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// FollowUps records all FollowupMessageCreate calls.
	FollowUps []*discordgo.WebhookParams

	// Sent records messages sent with ChannelMessageSend (as Content) and
	// ChannelMessageSendComplex.
	Sent []*discordgo.MessageSend

	// Edits records all ChannelMessageEditComplex calls.
	Edits []*discordgo.MessageEdit

	// Err is returned by every call when non-nil.
	Err error

	// EditErr is returned by ChannelMessageEditComplex when non-nil.
	EditErr error

	nextID int
}

// InteractionRespond records the response.
func (m *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// FollowupMessageCreate records the follow-up and returns a stub message.
func (m *Session) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// ChannelMessageSend records a plain message.
func (m *Session) ChannelMessageSend(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	return m.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: content}, opts...)
}

// ChannelMessageSendComplex records the message and returns it with IDs
// "msg-1", "msg-2", and so on.
func (m *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Sent = append(m.Sent, data)
	m.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", m.nextID), ChannelID: channelID, Content: data.Content}, nil
}

// ChannelMessageEditComplex records the edit.
func (m *Session) ChannelMessageEditComplex(e *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.EditErr != nil {
		return nil, m.EditErr
	}
	m.Edits = append(m.Edits, e)
	return &discordgo.Message{ID: e.ID, ChannelID: e.Channel}, nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *Session) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastFollowUp returns the most recently recorded follow-up, or nil.
func (m *Session) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.FollowUps) == 0 {
		return nil
	}
	return m.FollowUps[len(m.FollowUps)-1]
}

// SentContents returns the content of every sent message.
func (m *Session) SentContents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, s := range m.Sent {
		out[i] = s.Content
	}
	return out
}

// Reset clears all recorded calls and errors.
func (m *Session) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses, m.FollowUps, m.Sent, m.Edits = nil, nil, nil, nil
	m.Err, m.EditErr = nil, nil
}
