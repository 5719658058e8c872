package record

import (
	"context"
	"errors"
	"fmt"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
	"github.com/gogpu/scenebridge/render"
)

// Player replays recorded entries into a renderer, one frame at a time.
//
// Messages are queued verbatim, so a recording that contains rejected
// updates replays the same rejections.
type Player struct {
	ctxs    sb.Contexts
	r       *render.Renderer
	s       *api.Sender
	entries []Entry
	pos     int
	size    sb.Size
	frames  int
}

// NewPlayer returns a player feeding entries to r through s. size is the
// initial window size, normally Reader.Size.
func NewPlayer(ctxs sb.Contexts, r *render.Renderer, s *api.Sender, size sb.Size, entries []Entry) *Player {
	return &Player{ctxs: ctxs, r: r, s: s, size: size, entries: entries}
}

// Step queues the entries up to and including the next GenerateFrame,
// updates the renderer and renders when a frame exists. It reports false
// once every entry has been replayed.
func (p *Player) Step() (bool, error) {
	if p.pos >= len(p.entries) {
		return false, nil
	}
	end := p.pos
	for end < len(p.entries) {
		m := p.entries[end].Message
		end++
		if s, ok := m.(api.SetWindow); ok {
			p.size = s.Size
		}
		if m.Type() == api.MsgGenerateFrame {
			break
		}
	}
	msgs := make([]api.Message, 0, end-p.pos)
	for _, e := range p.entries[p.pos:end] {
		msgs = append(msgs, e.Message)
	}
	p.pos = end

	if err := p.s.Send(p.ctxs.Producer, msgs...); err != nil {
		return false, fmt.Errorf("record: replay: %w", err)
	}
	if err := p.r.Update(p.ctxs.Render); err != nil {
		return false, fmt.Errorf("record: replay update: %w", err)
	}
	switch err := p.r.Render(p.ctxs.Render, p.size); {
	case err == nil:
		p.frames++
	case errors.Is(err, render.ErrNoFrame):
	default:
		return false, fmt.Errorf("record: replay render: %w", err)
	}
	return true, nil
}

// Run steps until every entry is replayed or ctx is done.
func (p *Player) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := p.Step()
		if err != nil || !more {
			return err
		}
	}
}

// Frames returns the number of frames rendered so far.
func (p *Player) Frames() int { return p.frames }

// Size returns the window size as of the last replayed SetWindow.
func (p *Player) Size() sb.Size { return p.size }

// Remaining returns the number of entries not yet replayed.
func (p *Player) Remaining() int { return len(p.entries) - p.pos }
