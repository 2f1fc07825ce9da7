package network

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// RTCPeer negotiates a single data channel with a remote peer. The host calls
// Offer and Accept, the guest calls Answer; SDPs travel through signaling as
// base64 strings.
type RTCPeer struct {
	pc     *webrtc.PeerConnection
	logger *slog.Logger
	open   chan *DataChannel
}

// NewRTCPeer creates a peer connection using the given ICE servers.
func NewRTCPeer(iceURLs []string, logger *slog.Logger) (*RTCPeer, error) {
	if logger == nil {
		logger = slog.Default().With("component", "webrtc")
	}
	config := webrtc.Configuration{}
	if len(iceURLs) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: iceURLs}}
	}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	p := &RTCPeer{pc: pc, logger: logger, open: make(chan *DataChannel, 1)}
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.bind(dc)
	})
	return p, nil
}

func (p *RTCPeer) bind(dc *webrtc.DataChannel) {
	c := newDataChannel(dc)
	dc.OnOpen(func() {
		p.logger.Debug("data channel opened", "label", dc.Label())
		select {
		case p.open <- c:
		default:
		}
	})
	dc.OnClose(func() {
		c.in.close()
	})
	dc.OnError(func(err error) {
		p.logger.Warn("data channel error", "label", dc.Label(), "err", err)
	})
}

// Offer creates the data channel and returns the encoded local description
// once ICE gathering completes.
func (p *RTCPeer) Offer(ctx context.Context, label string) (string, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return "", err
	}
	p.bind(dc)
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	return p.setLocal(ctx, offer)
}

// Answer applies a remote offer and returns the encoded answer.
func (p *RTCPeer) Answer(ctx context.Context, offerSDP string) (string, error) {
	var offer webrtc.SessionDescription
	if err := DecodeSDP(offerSDP, &offer); err != nil {
		return "", err
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	return p.setLocal(ctx, answer)
}

// Accept applies the remote answer on the offering side.
func (p *RTCPeer) Accept(answerSDP string) error {
	var answer webrtc.SessionDescription
	if err := DecodeSDP(answerSDP, &answer); err != nil {
		return err
	}
	return p.pc.SetRemoteDescription(answer)
}

func (p *RTCPeer) setLocal(ctx context.Context, desc webrtc.SessionDescription) (string, error) {
	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return "", err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return EncodeSDP(p.pc.LocalDescription())
}

// Channel waits until the data channel is open.
func (p *RTCPeer) Channel(ctx context.Context) (*DataChannel, error) {
	select {
	case c := <-p.open:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *RTCPeer) Close() error {
	return p.pc.Close()
}

// DataChannel is a Channel over a WebRTC data channel. Binary messages are
// ignored.
type DataChannel struct {
	listeners
	dc *webrtc.DataChannel
	in *inbox
}

func newDataChannel(dc *webrtc.DataChannel) *DataChannel {
	c := &DataChannel{dc: dc}
	c.in = newInbox(c.dispatch)
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			c.in.push(string(msg.Data))
		}
	})
	return c
}

func (c *DataChannel) Send(msg string) error {
	if c.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrClosed
	}
	return c.dc.SendText(msg)
}

func (c *DataChannel) AddMessageListener(l Listener) ListenerID {
	return c.add(l)
}

func (c *DataChannel) RemoveMessageListener(id ListenerID) {
	c.remove(id)
}

func (c *DataChannel) Label() string {
	return c.dc.Label()
}

func (c *DataChannel) Close() error {
	c.in.close()
	return c.dc.Close()
}

// EncodeSDP encodes a session description in base64.
func EncodeSDP(desc *webrtc.SessionDescription) (string, error) {
	if desc == nil {
		return "", errors.New("no local description")
	}
	b, err := json.Marshal(desc)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeSDP decodes a base64 session description.
func DecodeSDP(in string, desc *webrtc.SessionDescription) error {
	b, err := base64.StdEncoding.DecodeString(in)
	if err != nil {
		return fmt.Errorf("decode sdp: %w", err)
	}
	return json.Unmarshal(b, desc)
}
