package sys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// MusicSetup binds a guild to its music channel and the two standing control messages.
type MusicSetup struct {
	GuildID        snowflake.ID
	ChannelID      snowflake.ID
	TrackMessageID snowflake.ID
	QueueMessageID snowflake.ID
	UpdatedAt      time.Time
}

// SaveMusicSetup upserts the record keyed by guild, retrying transient failures.
func SaveMusicSetup(ctx context.Context, s MusicSetup) error {
	return saveMusicSetup(ctx, s, DefaultRetryPolicy)
}

func saveMusicSetup(ctx context.Context, s MusicSetup, policy RetryPolicy) error {
	if s.GuildID == 0 || s.ChannelID == 0 || s.TrackMessageID == 0 || s.QueueMessageID == 0 {
		return fmt.Errorf("incomplete music setup for guild %s", s.GuildID)
	}

	op := func() error {
		if DB == nil {
			return Permanent(errors.New("database is not initialized"))
		}
		_, err := DB.ExecContext(ctx, `
			INSERT INTO music_setups (guild_id, channel_id, track_message_id, queue_message_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(guild_id) DO UPDATE SET
				channel_id = excluded.channel_id,
				track_message_id = excluded.track_message_id,
				queue_message_id = excluded.queue_message_id,
				updated_at = CURRENT_TIMESTAMP
		`, s.GuildID.String(), s.ChannelID.String(), s.TrackMessageID.String(), s.QueueMessageID.String())
		return err
	}

	err := Retry(ctx, policy, op, func(err error, wait time.Duration) {
		LogDatabase(MsgSetupRetry, s.GuildID, wait, err)
	})
	if err != nil {
		return err
	}
	LogDatabase(MsgSetupSaved, s.GuildID, s.ChannelID)
	return nil
}

func GetAllMusicSetups(ctx context.Context) ([]MusicSetup, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT guild_id, channel_id, track_message_id, queue_message_id, updated_at
		FROM music_setups ORDER BY guild_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var setups []MusicSetup
	for rows.Next() {
		s, err := scanMusicSetup(rows)
		if err != nil {
			return nil, err
		}
		setups = append(setups, *s)
	}
	return setups, rows.Err()
}

func DeleteMusicSetup(ctx context.Context, guildID snowflake.ID) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM music_setups WHERE guild_id = ?", guildID.String())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMusicSetup(r rowScanner) (*MusicSetup, error) {
	var gid, cid, tid, qid string
	s := &MusicSetup{}
	if err := r.Scan(&gid, &cid, &tid, &qid, &s.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if s.GuildID, err = snowflake.Parse(gid); err != nil {
		return nil, fmt.Errorf("failed to parse guild ID '%s': %w", gid, err)
	}
	if s.ChannelID, err = snowflake.Parse(cid); err != nil {
		return nil, fmt.Errorf("failed to parse channel ID '%s' for guild %s: %w", cid, gid, err)
	}
	if s.TrackMessageID, err = snowflake.Parse(tid); err != nil {
		return nil, fmt.Errorf("failed to parse track message ID '%s' for guild %s: %w", tid, gid, err)
	}
	if s.QueueMessageID, err = snowflake.Parse(qid); err != nil {
		return nil, fmt.Errorf("failed to parse queue message ID '%s' for guild %s: %w", qid, gid, err)
	}
	return s, nil
}

// SetupStore exposes the setup table to packages that take it as a dependency.
type SetupStore struct{}

func (SetupStore) All(ctx context.Context) ([]MusicSetup, error) {
	return GetAllMusicSetups(ctx)
}

func (SetupStore) Save(ctx context.Context, s MusicSetup) error {
	return SaveMusicSetup(ctx, s)
}

func (SetupStore) Delete(ctx context.Context, guildID snowflake.ID) error {
	return DeleteMusicSetup(ctx, guildID)
}
