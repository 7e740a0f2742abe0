package session

import "bytes"

// GameDataCacheSize is the number of entries both ends of a connection keep.
const GameDataCacheSize = 256

// GameDataCache mirrors the client's cache of recent game data. When full,
// adding evicts index 0 and every other entry moves down one index, so both
// ends must apply the same operations in the same order.
type GameDataCache struct {
	entries [][]byte
	head    int
	size    int
	// last is the index of the previous hit; consecutive ticks often repeat.
	last int
}

func NewGameDataCache(capacity int) *GameDataCache {
	if capacity <= 0 {
		capacity = GameDataCacheSize
	}
	return &GameDataCache{entries: make([][]byte, capacity), last: -1}
}

func (c *GameDataCache) Len() int { return c.size }

func (c *GameDataCache) pos(index int) int { return (c.head + index) % len(c.entries) }

// Add stores a copy of data and returns its index.
func (c *GameDataCache) Add(data []byte) int {
	if c.size == len(c.entries) {
		c.entries[c.head] = nil
		c.head = (c.head + 1) % len(c.entries)
		c.size--
		if c.last >= 0 {
			c.last--
		}
	}
	c.entries[c.pos(c.size)] = append([]byte(nil), data...)
	c.size++
	return c.size - 1
}

// Get returns the entry at index.
func (c *GameDataCache) Get(index int) ([]byte, bool) {
	if index < 0 || index >= c.size {
		return nil, false
	}
	return c.entries[c.pos(index)], true
}

// IndexOf returns the index of the newest entry equal to data, or -1.
func (c *GameDataCache) IndexOf(data []byte) int {
	if c.last >= 0 && c.last < c.size && bytes.Equal(c.entries[c.pos(c.last)], data) {
		return c.last
	}
	for i := c.size - 1; i >= 0; i-- {
		if bytes.Equal(c.entries[c.pos(i)], data) {
			c.last = i
			return i
		}
	}
	c.last = -1
	return -1
}

func (c *GameDataCache) Clear() {
	for i := range c.entries {
		c.entries[i] = nil
	}
	c.head, c.size, c.last = 0, 0, -1
}
