package discord

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

var _ audio.Connection = (*Connection)(nil)

const (
	inputChannelBuffer  = 64
	outputChannelBuffer = 64
)

// Connection adapts a discordgo.VoiceConnection to [audio.Connection].
//
// Incoming Opus packets carry only an SSRC. Discord announces which user owns
// an SSRC through speaking updates; packets for an SSRC that has not been
// announced yet are dropped. Input streams are keyed by Discord user ID.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string

	inputsMu sync.RWMutex
	inputs   map[string]chan audio.AudioFrame // keyed by user ID
	ssrcUser map[uint32]string

	output chan audio.AudioFrame

	changeCb func(audio.Event)
	changeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func()

	// disconnectVC defaults to vc.Disconnect; tests replace it.
	disconnectVC func() error
}

func newConnection(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string) *Connection {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		inputs:       make(map[string]chan audio.AudioFrame),
		ssrcUser:     make(map[uint32]string),
		output:       make(chan audio.AudioFrame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	c.removeHandler = session.AddHandler(c.handleVoiceStateUpdate)
	vc.AddHandler(c.handleSpeakingUpdate)

	go c.recvLoop()
	go c.sendLoop()
	return c
}

// InputStreams returns a snapshot of the per-user input channels.
func (c *Connection) InputStreams() map[string]<-chan audio.AudioFrame {
	c.inputsMu.RLock()
	defer c.inputsMu.RUnlock()
	snap := make(map[string]<-chan audio.AudioFrame, len(c.inputs))
	for id, ch := range c.inputs {
		snap[id] = ch
	}
	return snap
}

// OutputStream returns the channel whose frames are encoded and sent to Discord.
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	return c.output
}

// Participants lists the users in the voice channel according to the
// session's state cache, without the bot itself.
func (c *Connection) Participants() []audio.Participant {
	st := c.session.State
	if st == nil {
		return nil
	}
	g, err := st.Guild(c.guildID)
	if err != nil {
		return nil
	}

	self := ""
	if st.User != nil {
		self = st.User.ID
	}

	st.RLock()
	var ids []string
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == c.vc.ChannelID && vs.UserID != self {
			ids = append(ids, vs.UserID)
		}
	}
	st.RUnlock()

	out := make([]audio.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, audio.Participant{UserID: id, Username: c.displayName(id, nil)})
	}
	return out
}

// OnParticipantChange registers cb, replacing any previous callback.
func (c *Connection) OnParticipantChange(cb func(audio.Event)) {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()
	c.changeCb = cb
}

// Disconnect leaves the voice channel and closes every input stream.
// Calls after the first return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		if c.removeHandler != nil {
			c.removeHandler()
		}
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}

		c.inputsMu.Lock()
		for id, ch := range c.inputs {
			close(ch)
			delete(c.inputs, id)
		}
		c.inputsMu.Unlock()
	})
	return err
}

func (c *Connection) recvLoop() {
	decoders := make(map[uint32]*decoder)

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}
			c.deliver(pkt, decoders)
		}
	}
}

func (c *Connection) deliver(pkt *discordgo.Packet, decoders map[uint32]*decoder) {
	c.inputsMu.RLock()
	userID, known := c.ssrcUser[pkt.SSRC]
	c.inputsMu.RUnlock()
	if !known {
		return
	}

	dec, ok := decoders[pkt.SSRC]
	if !ok {
		var err error
		dec, err = newDecoder()
		if err != nil {
			slog.Error("discord: create opus decoder", "user_id", userID, "err", err)
			return
		}
		decoders[pkt.SSRC] = dec
	}

	pcm, err := dec.pcm(pkt.Opus)
	if err != nil {
		slog.Debug("discord: opus decode", "user_id", userID, "err", err)
		return
	}

	frame := audio.AudioFrame{
		Data:       pcm,
		SampleRate: audio.Discord.SampleRate,
		Channels:   audio.Discord.Channels,
		Timestamp:  time.Duration(pkt.Timestamp) * time.Second / time.Duration(audio.Discord.SampleRate),
	}

	// Hold the read lock while sending so Disconnect and leave handling
	// cannot close the channel underneath us.
	c.inputsMu.RLock()
	defer c.inputsMu.RUnlock()
	ch, ok := c.inputs[userID]
	if !ok {
		return
	}
	select {
	case ch <- frame:
	default:
	}
}

// sendLoop encodes output frames to 20 ms Opus packets at 48 kHz stereo.
func (c *Connection) sendLoop() {
	enc, err := newEncoder()
	if err != nil {
		slog.Error("discord: create opus encoder", "err", err)
		return
	}

	conv := audio.FormatConverter{Target: audio.Discord}
	framer := audio.Framer{Size: audio.Discord.FrameBytes(opusFrame)}
	speaking := false

	for {
		select {
		case <-c.done:
			if speaking {
				c.setSpeaking(false)
			}
			return
		case frame, ok := <-c.output:
			if !ok {
				return
			}
			if !speaking {
				c.setSpeaking(true)
				speaking = true
			}

			for _, pcm := range framer.Write(conv.Convert(frame).Data) {
				opus, err := enc.packet(pcm)
				if err != nil {
					slog.Warn("discord: opus encode", "err", err)
					continue
				}
				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// handleSpeakingUpdate binds an SSRC to a user and opens the user's input
// stream on first sight.
func (c *Connection) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}
	ssrc := uint32(vs.SSRC)

	c.inputsMu.Lock()
	select {
	case <-c.done:
		c.inputsMu.Unlock()
		return
	default:
	}
	c.ssrcUser[ssrc] = vs.UserID
	_, exists := c.inputs[vs.UserID]
	if !exists {
		c.inputs[vs.UserID] = make(chan audio.AudioFrame, inputChannelBuffer)
	}
	c.inputsMu.Unlock()

	if !exists {
		slog.Debug("discord: new speaker", "user_id", vs.UserID, "ssrc", strconv.Itoa(vs.SSRC))
		c.emitEvent(audio.Event{
			Type:     audio.EventJoin,
			UserID:   vs.UserID,
			Username: c.displayName(vs.UserID, nil),
		})
	}
}

// handleVoiceStateUpdate reports joins and leaves of our voice channel.
// A leaving user's input stream is closed.
func (c *Connection) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.VoiceState == nil || vsu.GuildID != c.guildID {
		return
	}
	channelID := c.vc.ChannelID
	wasHere := vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == channelID
	isHere := vsu.ChannelID == channelID

	switch {
	case wasHere && !isHere:
		c.closeInput(vsu.UserID)
		c.emitEvent(audio.Event{
			Type:     audio.EventLeave,
			UserID:   vsu.UserID,
			Username: c.displayName(vsu.UserID, vsu.Member),
		})
	case isHere && !wasHere:
		c.emitEvent(audio.Event{
			Type:     audio.EventJoin,
			UserID:   vsu.UserID,
			Username: c.displayName(vsu.UserID, vsu.Member),
		})
	}
}

func (c *Connection) closeInput(userID string) {
	c.inputsMu.Lock()
	defer c.inputsMu.Unlock()
	if ch, ok := c.inputs[userID]; ok {
		close(ch)
		delete(c.inputs, userID)
	}
	for ssrc, id := range c.ssrcUser {
		if id == userID {
			delete(c.ssrcUser, ssrc)
		}
	}
}

// displayName prefers the guild nickname, then the global display name,
// then the username. m may be nil; the state cache is consulted then.
func (c *Connection) displayName(userID string, m *discordgo.Member) string {
	if m == nil && c.session.State != nil {
		m, _ = c.session.State.Member(c.guildID, userID)
	}
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func (c *Connection) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Debug("discord: speaking notification", "speaking", b, "err", err)
	}
}

func (c *Connection) emitEvent(ev audio.Event) {
	c.changeMu.Lock()
	cb := c.changeCb
	c.changeMu.Unlock()
	if cb != nil {
		go cb(ev)
	}
}
