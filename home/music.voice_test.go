package home

import (
	"slices"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func channel(id snowflake.ID) *snowflake.ID {
	return &id
}

func TestClassifyVoiceState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		update  discord.VoiceState
		current snowflake.ID
		want    voiceAction
	}{
		{
			name:   "listener moved",
			update: discord.VoiceState{GuildID: testGuild, UserID: 500, ChannelID: channel(voiceA)},
			want:   voiceCheckListeners,
		},
		{
			name:   "listener left",
			update: discord.VoiceState{GuildID: testGuild, UserID: 500},
			want:   voiceCheckListeners,
		},
		{
			name:    "bot dragged",
			update:  discord.VoiceState{GuildID: testGuild, UserID: testBot, ChannelID: channel(voiceB)},
			current: voiceB,
			want:    voiceFollow,
		},
		{
			name:   "bot kicked",
			update: discord.VoiceState{GuildID: testGuild, UserID: testBot},
			want:   voiceForcedLeave,
		},
		{
			name:    "leave already superseded by a rejoin",
			update:  discord.VoiceState{GuildID: testGuild, UserID: testBot},
			current: voiceB,
			want:    voiceIgnore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyVoiceState(testBot, tt.update, tt.current))
		})
	}
}

func TestCountListeners(t *testing.T) {
	t.Parallel()

	const otherBot snowflake.ID = 3
	isBot := func(id snowflake.ID) bool { return id == otherBot }

	tests := []struct {
		name   string
		states []discord.VoiceState
		want   int
	}{
		{name: "empty guild"},
		{
			name:   "only the bot",
			states: []discord.VoiceState{{UserID: testBot, ChannelID: channel(voiceA)}},
		},
		{
			name: "other bots do not count",
			states: []discord.VoiceState{
				{UserID: testBot, ChannelID: channel(voiceA)},
				{UserID: otherBot, ChannelID: channel(voiceA)},
			},
		},
		{
			name: "humans elsewhere do not count",
			states: []discord.VoiceState{
				{UserID: testBot, ChannelID: channel(voiceA)},
				{UserID: 500, ChannelID: channel(voiceB)},
				{UserID: 501},
			},
		},
		{
			name: "humans with the bot",
			states: []discord.VoiceState{
				{UserID: testBot, ChannelID: channel(voiceA)},
				{UserID: 500, ChannelID: channel(voiceA)},
				{UserID: 501, ChannelID: channel(voiceA)},
				{UserID: otherBot, ChannelID: channel(voiceA)},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, countListeners(slices.Values(tt.states), testBot, voiceA, isBot))
		})
	}
}

type cachedVoiceStates map[snowflake.ID]discord.VoiceState

func (c cachedVoiceStates) VoiceState(_, userID snowflake.ID) (discord.VoiceState, bool) {
	s, ok := c[userID]
	return s, ok
}

func TestUserVoiceChannel(t *testing.T) {
	t.Parallel()

	states := cachedVoiceStates{
		500: {UserID: 500, ChannelID: channel(voiceA)},
		501: {UserID: 501},
	}

	tests := []struct {
		name   string
		userID snowflake.ID
		want   snowflake.ID
	}{
		{name: "connected", userID: 500, want: voiceA},
		{name: "state without channel", userID: 501},
		{name: "no state", userID: 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, userVoiceChannel(states, testGuild, tt.userID))
		})
	}
}
