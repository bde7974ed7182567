package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"channah-support-chat/pkg/logger"

	"go.uber.org/zap"
)

// Hub tracks one room per conversation. Rooms exist while they have clients
// and subscribe to the broker for as long as they exist.
type Hub struct {
	rooms      map[string]*Room
	register   chan *Client
	unregister chan *Client
	broadcast  chan *delivery
	roomsReq   chan chan []RoomRes

	broker Broker
	log    *logger.Logger
	done   chan struct{}
}

func NewHub(broker Broker, log *logger.Logger) *Hub {
	if broker == nil {
		broker = NewLocalBroker()
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *delivery, 64),
		roomsReq:   make(chan chan []RoomRes),
		broker:     broker,
		log:        logger.OrGlobal(log).Named("hub"),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			room, ok := h.rooms[client.roomID]
			if !ok {
				room = h.openRoom(client.roomID)
			}
			room.Clients[client.id] = client
			incConnections()

		case client := <-h.unregister:
			room, ok := h.rooms[client.roomID]
			if !ok {
				continue
			}
			if _, ok := room.Clients[client.id]; ok {
				delete(room.Clients, client.id)
				close(client.send)
				decConnections()
			}
			if len(room.Clients) == 0 {
				h.closeRoom(room)
			}

		case d := <-h.broadcast:
			room, ok := h.rooms[d.roomID]
			if !ok {
				continue
			}
			delivered := 0
			for id, client := range room.Clients {
				if id == d.origin {
					continue
				}
				select {
				case client.send <- d.frame:
					delivered++
				default:
					close(client.send)
					delete(room.Clients, id)
					decConnections()
					h.log.Warn("dropping slow websocket client", zap.String("client_id", id), zap.String("room_id", d.roomID))
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}

		case reply := <-h.roomsReq:
			rooms := make([]RoomRes, 0, len(h.rooms))
			for _, room := range h.rooms {
				rooms = append(rooms, RoomRes{ID: room.ID, Clients: len(room.Clients)})
			}
			reply <- rooms
		}
	}
}

func (h *Hub) openRoom(id string) *Room {
	room := &Room{ID: id, Clients: make(map[string]*Client)}
	unsubscribe, err := h.broker.Subscribe(id, func(payload []byte) {
		h.deliver(id, payload)
	})
	if err != nil {
		h.log.Error("room subscription failed", zap.String("room_id", id), zap.Error(err))
	} else {
		room.unsubscribe = unsubscribe
	}
	h.rooms[id] = room
	setRooms(len(h.rooms))
	return room
}

func (h *Hub) closeRoom(room *Room) {
	if room.unsubscribe != nil {
		room.unsubscribe()
	}
	delete(h.rooms, room.ID)
	setRooms(len(h.rooms))
}

func (h *Hub) closeAll() {
	for _, room := range h.rooms {
		for id, client := range room.Clients {
			close(client.send)
			delete(room.Clients, id)
			decConnections()
		}
		h.closeRoom(room)
	}
}

func (h *Hub) deliver(roomID string, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || len(env.Frame) == 0 {
		h.log.Warn("dropping malformed broker payload", zap.String("room_id", roomID))
		return
	}
	select {
	case h.broadcast <- &delivery{roomID: roomID, origin: env.Origin, frame: env.Frame}:
	case <-h.done:
	}
}

// Publish sends frame to every connection in roomID on every instance,
// except the connection named by origin.
func (h *Hub) Publish(ctx context.Context, roomID, origin string, frame []byte) error {
	if roomID == "" {
		return fmt.Errorf("websocket publish: roomID required")
	}
	payload, err := json.Marshal(envelope{Origin: origin, Frame: frame})
	if err != nil {
		return fmt.Errorf("websocket publish: marshal payload: %w", err)
	}
	return h.broker.Publish(ctx, roomID, payload)
}

// Rooms lists the rooms currently open on this instance.
func (h *Hub) Rooms() []RoomRes {
	reply := make(chan []RoomRes, 1)
	select {
	case h.roomsReq <- reply:
		return <-reply
	case <-h.done:
		return nil
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
