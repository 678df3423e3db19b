package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"sync"
	"time"
)

// Publisher ships aggregated log batches somewhere durable, typically a
// Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig tunes the collector.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // max unique entries before an early flush
	Topic          string        // destination topic
	Publisher      Publisher
	Logger         *Logger // flush failures go here; nil falls back to stderr
}

// AggregatedLogEntry is one deduplicated log line with its occurrence count.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector absorbs repetitive log lines from hot paths and flushes them
// as counted batches. Identical level+message+fields collapse into one entry,
// so a reading storm costs one publish instead of thousands of log writes.
type LogCollector struct {
	config  *CollectionConfig
	entries map[string]*AggregatedLogEntry
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewLogCollector starts the collector's periodic flush loop.
func NewLogCollector(config *CollectionConfig) *LogCollector {
	ctx, cancel := context.WithCancel(context.Background())

	c := &LogCollector{
		config:  config,
		entries: make(map[string]*AggregatedLogEntry),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

// AddLog records one occurrence. Crossing the unique-entry threshold flushes
// early.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.entries) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// entryKey collapses identical lines. Fields go through JSON so map keys
// come out in a stable order.
func entryKey(level, message string, fields map[string]interface{}, caller string) string {
	fieldJSON, _ := json.Marshal(fields)
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s", level, message, caller, fieldJSON)
	return strconv.FormatUint(h.Sum64(), 16)
}

func (c *LogCollector) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flushPending()
		case <-c.ctx.Done():
			c.flushPending()
			return
		}
	}
}

func (c *LogCollector) flushPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// flushLocked publishes the batch and resets the map. Caller holds mu.
func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}

	logs := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		logs = append(logs, *entry)
	}
	c.entries = make(map[string]*AggregatedLogEntry)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, logs); err != nil {
			if c.config.Logger != nil {
				c.config.Logger.Warn("aggregated log flush failed", Error(err))
			} else {
				fmt.Fprintf(os.Stderr, "aggregated log flush failed: %v\n", err)
			}
		}
	}()
}

// Close flushes what remains and stops the loop.
func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
