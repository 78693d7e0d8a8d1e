package video

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
	"weaponcam/internal/services/recorder"

	"gocv.io/x/gocv"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// UDPSource receives JPEG frames that a network camera pushes as a series
// of UDP packets. Only the newest complete frame is kept; a slow pipeline
// skips frames instead of falling behind.
type UDPSource struct {
	id     string
	conn   *net.UDPConn
	fps    float64
	logger *logger.Logger

	latest chan []byte
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	size models.FrameSize
	seq  uint64
}

// ListenUDP starts receiving on port. fps is the camera's nominal rate.
func ListenUDP(id string, port int, fps float64, logger *logger.Logger) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP port %d: %w", port, err)
	}

	s := &UDPSource{
		id:     id,
		conn:   conn,
		fps:    recorder.NormalizeFPS(fps, recorder.DefaultFPS),
		logger: logger,
		latest: make(chan []byte, 1),
		closed: make(chan struct{}),
	}
	go s.receive()

	logger.Info("📡 UDP camera source %s listening on port %d", id, port)
	return s, nil
}

func (s *UDPSource) ID() string {
	return s.id
}

func (s *UDPSource) FPS() float64 {
	return s.fps
}

// Size is zero until the first frame has been decoded.
func (s *UDPSource) Size() models.FrameSize {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Next waits for the next complete JPEG and decodes it.
func (s *UDPSource) Next(ctx context.Context) (models.Frame, error) {
	for {
		var data []byte
		select {
		case <-ctx.Done():
			return models.Frame{}, ctx.Err()
		case <-s.closed:
			return models.Frame{}, models.ErrSourceExhausted
		case data = <-s.latest:
		}

		frame, err := s.decode(data)
		if err != nil {
			s.logger.Warning("📡 [%s] Dropping undecodable frame: %v", s.id, err)
			continue
		}
		return frame, nil
	}
}

func (s *UDPSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

func (s *UDPSource) decode(data []byte) (models.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return models.Frame{}, err
	}
	defer mat.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	frame, err := fromMat(mat, s.seq, time.Now())
	if err != nil {
		return models.Frame{}, err
	}
	s.size = frame.Size()
	return frame, nil
}

// receive reassembles packets into JPEG frames until the socket is closed.
func (s *UDPSource) receive() {
	buffer := make([]byte, 65535)
	var frame bytes.Buffer

	for {
		n, _, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if strings.Contains(err.Error(), "use of closed network connection") {
				s.Close()
				return
			}
			s.logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		data := buffer[:n]
		if bytes.HasPrefix(data, jpegHeader) {
			frame.Reset()
		}
		frame.Write(data)

		if bytes.HasSuffix(data, jpegFooter) {
			full := make([]byte, frame.Len())
			copy(full, frame.Bytes())
			frame.Reset()
			s.offer(full)
		}
	}
}

// offer replaces any frame still waiting to be read.
func (s *UDPSource) offer(data []byte) {
	for {
		select {
		case s.latest <- data:
			return
		default:
		}
		select {
		case <-s.latest:
		default:
		}
	}
}
