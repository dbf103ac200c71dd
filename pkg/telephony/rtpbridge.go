package telephony

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/pion/rtp"
	opus "gopkg.in/hraban/opus.v2"

	"github.com/vaani-labs/go-vaani/pkg/audio"
)

// RTP payload parameters for Opus media.
const (
	opusPayloadType = 111

	// Opus RTP timestamps run on a 48kHz clock regardless of the
	// coded sample rate.
	opusClockRate       = 48000
	opusTimestampStride = opusClockRate * FrameMs / 1000

	samplesPerFrame = SampleRate * FrameMs / 1000
	maxOpusPacket   = 1500
)

// RTPBridge carries call media as Opus RTP over UDP. Inbound packets
// are decoded to PCM16 frames on the capture queue; Send encodes and
// ships one outbound frame. Signaling lives elsewhere; the bridge only
// moves audio.
type RTPBridge struct {
	conn    *net.UDPConn
	remote  *net.UDPAddr
	encoder *opus.Encoder
	decoder *opus.Decoder
	logger  *slog.Logger

	capture chan []byte
	done    chan struct{}
	once    sync.Once

	sendMu sync.Mutex
	seq    uint16
	ts     uint32
	ssrc   uint32
}

// NewRTPBridge binds localAddr and targets remoteAddr for outbound
// media. Call Start before using Capture.
func NewRTPBridge(localAddr, remoteAddr string, logger *slog.Logger) (*RTPBridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("telephony: resolve local addr: %w", err)
	}
	raddr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("telephony: resolve remote addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("telephony: bind media socket: %w", err)
	}

	encoder, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("telephony: create opus encoder: %w", err)
	}
	decoder, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("telephony: create opus decoder: %w", err)
	}

	var ssrcBytes [4]byte
	if _, err := rand.Read(ssrcBytes[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("telephony: generate ssrc: %w", err)
	}

	return &RTPBridge{
		conn:    conn,
		remote:  raddr,
		encoder: encoder,
		decoder: decoder,
		logger:  logger.With("component", "telephony.rtp"),
		capture: make(chan []byte, QueueDepth),
		done:    make(chan struct{}),
		ssrc:    binary.BigEndian.Uint32(ssrcBytes[:]),
	}, nil
}

// Start launches the inbound read loop. The loop exits on Close or
// when ctx ends.
func (b *RTPBridge) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.Close()
	}()
	go b.readLoop()
}

// Capture yields decoded inbound PCM16 frames.
func (b *RTPBridge) Capture() <-chan []byte {
	return b.capture
}

// Send encodes one PCM16 frame and ships it as an RTP packet.
func (b *RTPBridge) Send(pcm []byte) error {
	select {
	case <-b.done:
		return ErrSessionClosed
	default:
	}

	samples := audio.ConvertPCM16ToInt16(pcm)
	if len(samples) != samplesPerFrame {
		return fmt.Errorf("telephony: frame is %d samples, want %d", len(samples), samplesPerFrame)
	}

	encoded := make([]byte, maxOpusPacket)
	n, err := b.encoder.Encode(samples, encoded)
	if err != nil {
		return fmt.Errorf("telephony: opus encode: %w", err)
	}

	b.sendMu.Lock()
	b.seq++
	b.ts += opusTimestampStride
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: b.seq,
			Timestamp:      b.ts,
			SSRC:           b.ssrc,
		},
		Payload: encoded[:n],
	}
	b.sendMu.Unlock()

	wire, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("telephony: marshal rtp: %w", err)
	}
	if _, err := b.conn.WriteToUDP(wire, b.remote); err != nil {
		return fmt.Errorf("telephony: send media: %w", err)
	}
	return nil
}

// Close stops the bridge and closes the capture channel.
func (b *RTPBridge) Close() error {
	b.once.Do(func() {
		close(b.done)
		b.conn.Close()
	})
	return nil
}

func (b *RTPBridge) readLoop() {
	defer close(b.capture)

	buf := make([]byte, maxOpusPacket)
	pcm := make([]int16, samplesPerFrame)

	for {
		n, _, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-b.done:
			default:
				b.logger.Warn("media read failed", "error", err)
			}
			return
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			b.logger.Debug("dropping malformed rtp packet", "error", err)
			continue
		}
		if pkt.PayloadType != opusPayloadType {
			continue
		}

		decoded, err := b.decoder.Decode(pkt.Payload, pcm)
		if err != nil {
			b.logger.Debug("dropping undecodable frame", "seq", pkt.SequenceNumber, "error", err)
			continue
		}

		frame := audio.ConvertInt16ToPCM16(pcm[:decoded*Channels])
		b.enqueue(frame)
	}
}

// enqueue pushes a frame, dropping the oldest queued frame when the
// consumer has fallen behind.
func (b *RTPBridge) enqueue(frame []byte) {
	select {
	case b.capture <- frame:
		return
	default:
	}
	select {
	case <-b.capture:
	default:
	}
	select {
	case b.capture <- frame:
	default:
	}
}
