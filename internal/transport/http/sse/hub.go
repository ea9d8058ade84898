package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

const (
	publishBuffer = 100
	ClientBuffer  = 16
)

// Hub рассылает снимки состояния всем подключенным браузерам.
// Множество клиентов меняется только в горутине Run, поэтому мьютекс не нужен.
type Hub struct {
	log *slog.Logger

	clients map[chan []byte]struct{}

	subscribe   chan chan []byte
	unsubscribe chan chan []byte
	publish     chan []byte
	done        chan struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:         log,
		clients:     make(map[chan []byte]struct{}),
		subscribe:   make(chan chan []byte),
		unsubscribe: make(chan chan []byte),
		publish:     make(chan []byte, publishBuffer),
		done:        make(chan struct{}),
	}
}

// Run цикл событий хаба, завершается по отмене ctx
func (h *Hub) Run(ctx context.Context) {
	const op = "sse.Hub.Run"

	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("sse hub stopped", slog.String("op", op), slog.Int("clients", len(h.clients)))
			return
		case ch := <-h.subscribe:
			h.clients[ch] = struct{}{}
		case ch := <-h.unsubscribe:
			delete(h.clients, ch)
		case msg := <-h.publish:
			for ch := range h.clients {
				select {
				case ch <- msg:
				default:
					// клиент не успевает читать
					h.log.Debug("dropping message for slow client", slog.String("op", op))
				}
			}
		}
	}
}

// Subscribe регистрирует канал клиента. Канал закрывает вызывающий после Unsubscribe.
// Возвращает false, если хаб уже остановлен.
func (h *Hub) Subscribe(ch chan []byte) bool {
	select {
	case h.subscribe <- ch:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	select {
	case h.unsubscribe <- ch:
	case <-h.done:
	}
}

func (h *Hub) Publish(msg []byte) {
	select {
	case h.publish <- msg:
	case <-h.done:
	}
}

func (h *Hub) PublishJSON(v any) error {
	const op = "sse.Hub.PublishJSON"

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	h.Publish(data)

	return nil
}

// Done закрывается после остановки Run
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
