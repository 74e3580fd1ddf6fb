package eventstore

import (
	"context"
)

// ReplayCursor streams events from a global position forward in bounded
// pages, for projections and other subscribers that replay the whole log
// rather than a single aggregate's history.
type ReplayCursor struct {
	log      *Log
	position int64
	pageSize int
}

// NewReplayCursor constructs a cursor starting just after fromPosition
// (0 replays from the beginning of the log).
func NewReplayCursor(log *Log, fromPosition int64, pageSize int) *ReplayCursor {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &ReplayCursor{log: log, position: fromPosition, pageSize: pageSize}
}

// Position returns the last global_position this cursor has delivered.
func (c *ReplayCursor) Position() int64 {
	return c.position
}

// Next returns up to pageSize envelopes after the cursor's current
// position, advancing the cursor past the last one returned. An empty,
// nil-error result means the log has no more events right now.
func (c *ReplayCursor) Next(ctx context.Context) ([]*Envelope, error) {
	rows, err := c.log.adapter.SelectFromPosition(ctx, c.position, c.pageSize)
	if err != nil {
		return nil, err
	}
	envs, err := c.log.hydrate(rows)
	if err != nil {
		return nil, err
	}
	if len(envs) > 0 {
		c.position = envs[len(envs)-1].GlobalPosition
	}
	return envs, nil
}

// Each drives fn over every envelope in the log from the cursor's current
// position, stopping at the first error from the log or fn, or when fn
// returns false to stop early.
func (c *ReplayCursor) Each(ctx context.Context, fn func(*Envelope) (bool, error)) error {
	for {
		batch, err := c.Next(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, env := range batch {
			cont, err := fn(env)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
	}
}
