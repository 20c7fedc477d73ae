package service

import "sync"

// roomLocks hands out one mutex per room name. Entries are dropped once nobody holds or waits on them.
type roomLocks struct {
	mu    sync.Mutex
	rooms map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{rooms: make(map[string]*roomLock)}
}

// lock blocks until the room is free and returns the matching unlock.
func (l *roomLocks) lock(room string) func() {
	l.mu.Lock()
	rl, ok := l.rooms[room]
	if !ok {
		rl = &roomLock{}
		l.rooms[room] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.rooms, room)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
