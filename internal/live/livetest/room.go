package livetest

// Room fans pushed frames out to the clients that joined it.
type Room struct {
	id             string
	clients        map[*Client]bool
	registerChan   chan *Client
	unregisterChan chan *Client
	broadcastChan  chan []byte
	stopChan       chan struct{}
}

func newRoom(id string) *Room {
	r := &Room{
		id:             id,
		clients:        make(map[*Client]bool),
		registerChan:   make(chan *Client),
		unregisterChan: make(chan *Client),
		broadcastChan:  make(chan []byte, 256),
		stopChan:       make(chan struct{}),
	}
	go r.run()
	return r
}

// run serializes membership changes and broadcasts.
func (r *Room) run() {
	for {
		select {
		case c := <-r.registerChan:
			r.clients[c] = true
		case c := <-r.unregisterChan:
			delete(r.clients, c)
		case msg := <-r.broadcastChan:
			for c := range r.clients {
				select {
				case c.send <- msg:
				default:
					// slow client; drop
				}
			}
		case <-r.stopChan:
			return
		}
	}
}

func (r *Room) stop() {
	select {
	case <-r.stopChan:
	default:
		close(r.stopChan)
	}
}
