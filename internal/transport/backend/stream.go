package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"prompt_gallery/internal/domain/models"
)

const (
	maxLineSize = 1 << 20
	readBufSize = 64 * 1024
)

type imageFrame struct {
	ImagePath string `json:"image_path"`
}

// Stream ленивая конечная последовательность событий генерации.
// Повторно не открывается; владелец обязан вызвать Close на любом пути выхода.
type Stream struct {
	log    *slog.Logger
	body   io.ReadCloser
	cancel context.CancelFunc
	reader *bufio.Reader

	ended     bool
	closed    atomic.Bool
	closeOnce sync.Once
}

func newStream(log *slog.Logger, body io.ReadCloser, cancel context.CancelFunc) *Stream {
	return &Stream{
		log:    log,
		body:   body,
		cancel: cancel,
		reader: bufio.NewReaderSize(body, readBufSize),
	}
}

// NewStream разбирает произвольный reader, используется в тестах и прокси
func NewStream(log *slog.Logger, body io.ReadCloser) *Stream {
	return newStream(log, body, func() {})
}

// Next возвращает следующее событие. После события end или закрытия тела возвращает io.EOF.
// Битые кадры пропускаются.
func (s *Stream) Next() (models.GenerationEvent, error) {
	const op = "backend.Stream.Next"

	if s.ended || s.closed.Load() {
		return models.GenerationEvent{}, io.EOF
	}

	var eventType string
	var data strings.Builder
	// кадр со слишком длинной строкой отбрасывается целиком
	broken := false

	for {
		line, oversized, err := s.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				return models.GenerationEvent{}, fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
			}
			break
		}

		if oversized {
			s.log.Warn("skip oversized stream line", slog.String("op", op), slog.Int("limit", maxLineSize))
			broken = true
			continue
		}

		line = strings.TrimRight(line, "\r")

		if line == "" {
			if broken {
				eventType = ""
				data.Reset()
				broken = false
				continue
			}

			ev, ok := s.dispatch(eventType, data.String())
			eventType = ""
			data.Reset()

			if ok {
				return ev, nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// комментарий / keep-alive
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			s.log.Debug("skip unknown stream line", slog.String("op", op), slog.String("line", line))
		}
	}

	// последний кадр без завершающей пустой строки
	if !broken {
		if ev, ok := s.dispatch(eventType, data.String()); ok {
			return ev, nil
		}
	}

	return models.GenerationEvent{}, io.EOF
}

// readLine читает строку без \n. Строка длиннее maxLineSize дочитывается до конца
// и отбрасывается с oversized=true, поток при этом не прерывается.
func (s *Stream) readLine() (string, bool, error) {
	var buf []byte
	oversized := false

	for {
		chunk, err := s.reader.ReadSlice('\n')

		if !oversized {
			if len(buf)+len(chunk) > maxLineSize+1 {
				oversized = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if err != nil {
			if errors.Is(err, io.EOF) && (len(buf) > 0 || oversized) {
				return strings.TrimSuffix(string(buf), "\n"), oversized, nil
			}

			return "", false, err
		}

		return strings.TrimSuffix(string(buf), "\n"), oversized, nil
	}
}

func (s *Stream) dispatch(eventType, data string) (models.GenerationEvent, bool) {
	const op = "backend.Stream.dispatch"

	if eventType == "end" {
		s.ended = true
		return models.GenerationEvent{End: true}, true
	}

	if data == "" {
		return models.GenerationEvent{}, false
	}

	var frame imageFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		s.log.Warn("skip malformed frame",
			slog.String("op", op),
			slog.String("data", data),
			slog.String("error", err.Error()),
		)
		return models.GenerationEvent{}, false
	}

	if frame.ImagePath == "" {
		return models.GenerationEvent{}, false
	}

	return models.GenerationEvent{ImagePath: frame.ImagePath}, true
}

// Close закрывает тело и отменяет запрос. Можно вызывать многократно и из другой горутины.
func (s *Stream) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		err = s.body.Close()
	})

	return err
}
