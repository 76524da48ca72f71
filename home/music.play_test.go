package home

import (
	"context"
	"fmt"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchQuery = "lofi beats"

func searchResults() map[string]proc.Resolution {
	results := map[string]proc.Resolution{
		searchQuery:            {Candidates: candidates(3)},
		"https://video/single": {Tracks: []proc.Track{track("Single")}},
	}
	for i, c := range candidates(3) {
		results[c.URL] = proc.Resolution{Tracks: []proc.Track{track(fmt.Sprintf("Result %d", i+1))}}
	}
	return results
}

func playReq(query string, voice snowflake.ID) playRequest {
	return playRequest{
		Token:          "tok",
		User:           testUser,
		GuildID:        testGuild,
		VoiceChannelID: voice,
		TextChannelID:  textChannel,
		Query:          query,
	}
}

func TestPlay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		query       string
		voice       snowflake.ID
		failStreams bool
		wantNotice  string
		wantLookups []string
		wantPlayed  []string
	}{
		{
			name:       "listener outside voice is refused before resolving",
			query:      searchQuery,
			wantNotice: sys.ErrMusicNotInVoice,
		},
		{
			name:       "blank query",
			voice:      voiceA,
			wantNotice: sys.ErrMusicNothingFound,
		},
		{
			name:        "unknown link",
			query:       "https://video/missing",
			voice:       voiceA,
			wantNotice:  sys.ErrMusicResolveFailed,
			wantLookups: []string{"https://video/missing"},
		},
		{
			name:        "direct link starts playing",
			query:       "https://video/single",
			voice:       voiceA,
			wantNotice:  "Now playing: [Single]",
			wantLookups: []string{"https://video/single"},
			wantPlayed:  []string{"Single"},
		},
		{
			name:        "every stream failing",
			query:       "https://video/single",
			voice:       voiceA,
			failStreams: true,
			wantNotice:  sys.ErrMusicPlayFailed,
			wantLookups: []string{"https://video/single"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rt := newTestRuntime(t, searchResults())
			rt.voiceFake.failAll = tt.failStreams
			api := &fakeInteractions{}

			rt.play(context.Background(), rt.reply(api, 1, "token"), playReq(tt.query, tt.voice))

			edits := api.editTexts()
			require.Len(t, edits, 1)
			assert.Contains(t, edits[0], tt.wantNotice)
			assert.Equal(t, tt.wantLookups, rt.resolved.calls())
			assert.ElementsMatch(t, tt.wantPlayed, rt.voiceFake.playedTitles())
		})
	}
}

func TestPlaySearchOpensPicker(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t, searchResults())
	api := &fakeInteractions{}

	rt.play(context.Background(), rt.reply(api, 1, "token"), playReq(searchQuery, voiceA))

	view := api.lastEdit()
	require.NotNil(t, view)
	menu := selectMenu(t, view)
	assert.Equal(t, customPick+"tok", menu.CustomID)
	assert.Len(t, menu.Options, 3)
	assert.False(t, menu.Disabled)
	assert.Empty(t, rt.voiceFake.playedTitles())
}

func TestPickEnqueuesChosenCandidateOnce(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t, searchResults())
	ctx := context.Background()
	api := &fakeInteractions{}
	rt.play(ctx, rt.reply(api, 1, "token"), playReq(searchQuery, voiceA))
	picker := api.lastEdit()

	pick := pickRequest{Token: "tok", User: testUser, Index: 2, VoiceChannelID: voiceA, Components: picker}

	first := &fakeInteractions{}
	rt.pick(ctx, rt.reply(first, 1, "pick-1"), pick)

	assert.Equal(t, []string{searchQuery, "https://video/r3"}, rt.resolved.calls())
	assert.Equal(t, []string{"Result 3"}, rt.voiceFake.playedTitles())
	assert.True(t, selectMenu(t, first.lastEdit()).Disabled)
	assert.Contains(t, first.editTexts()[0], "Selected **3.**")
	require.Len(t, first.followupTexts(), 1)
	assert.Contains(t, first.followupTexts()[0], "Now playing: [Result 3]")

	second := &fakeInteractions{}
	rt.pick(ctx, rt.reply(second, 1, "pick-2"), pick)

	assert.Len(t, rt.resolved.calls(), 2)
	assert.Equal(t, []string{"Result 3"}, rt.voiceFake.playedTitles())
	assert.True(t, selectMenu(t, second.lastEdit()).Disabled)
	assert.Equal(t, []string{sys.ErrMusicSelectExpired + "\n"}, second.followupTexts())
}

func TestPickRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		user       snowflake.ID
		voice      snowflake.ID
		wantNotice string
		wantOpen   bool
	}{
		{name: "another user", user: 900, voice: voiceA, wantNotice: sys.ErrMusicNotYours, wantOpen: true},
		{name: "requester left voice", user: testUser.ID, wantNotice: sys.ErrMusicNotInVoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rt := newTestRuntime(t, searchResults())
			ctx := context.Background()
			rt.play(ctx, rt.reply(&fakeInteractions{}, 1, "token"), playReq(searchQuery, voiceA))

			user := testUser
			user.ID = tt.user
			api := &fakeInteractions{}
			rt.pick(ctx, rt.reply(api, 1, "pick"), pickRequest{Token: "tok", User: user, Index: 0, VoiceChannelID: tt.voice})

			require.Len(t, api.followupTexts(), 1)
			assert.Contains(t, api.followupTexts()[0], tt.wantNotice)
			assert.Empty(t, rt.voiceFake.playedTitles())

			_, open := rt.picks.Expire("tok")
			assert.Equal(t, tt.wantOpen, open)
		})
	}
}
