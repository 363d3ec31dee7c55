// Package tcp accepts fixes from physical GPS units that speak a plain
// line protocol: deviceId,lat,lon[,unixTimestamp]
package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/handler/payload"
)

const (
	defaultIdleTimeout = 5 * time.Minute
	lineTimeout        = 10 * time.Second
	maxLineBytes       = 4096
)

type ingestService interface {
	Ingest(ctx context.Context, raw domain.RawFix) (*domain.IngestResult, error)
}

type Server struct {
	addr        string
	ingestSvc   ingestService
	idleTimeout time.Duration
	wg          sync.WaitGroup
}

func NewServer(addr string, ingestSvc ingestService) *Server {
	return &Server{
		addr:        addr,
		ingestSvc:   ingestSvc,
		idleTimeout: defaultIdleTimeout,
	}
}

// Run listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	log.Printf("gps tcp server listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	remote := conn.RemoteAddr().String()
	log.Printf("gps device connected from %s", remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxLineBytes)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.handleLine(ctx, remote, line)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("gps connection %s closed: %v", remote, err)
	}
}

func (s *Server) handleLine(ctx context.Context, remote, line string) {
	raw, err := ParseLine(line)
	if err != nil {
		log.Printf("invalid gps line from %s: %v", remote, err)
		return
	}

	lctx, cancel := context.WithTimeout(ctx, lineTimeout)
	defer cancel()

	if _, err := s.ingestSvc.Ingest(lctx, raw); err != nil {
		log.Printf("ingest error for %s: %v", raw.TrackerID, err)
	}
}

// ParseLine decodes one deviceId,lat,lon[,unixTimestamp] record. Range
// checks are left to the ingestion pipeline.
func ParseLine(line string) (domain.RawFix, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 3 || len(parts) > 4 {
		return domain.RawFix{}, &domain.ValidationError{Field: "line", Reason: "expected deviceId,lat,lon[,timestamp]"}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return domain.RawFix{}, &domain.ValidationError{Field: "latitude", Reason: "must be a number"}
	}
	lon, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return domain.RawFix{}, &domain.ValidationError{Field: "longitude", Reason: "must be a number"}
	}

	raw := domain.RawFix{
		Source:    "tcp",
		TrackerID: parts[0],
		Lat:       &lat,
		Lon:       &lon,
	}
	if len(parts) == 4 && parts[3] != "" {
		ts, err := payload.ParseTime(parts[3])
		if err != nil {
			return domain.RawFix{}, err
		}
		raw.CapturedAt = &ts
	}
	return raw, nil
}
