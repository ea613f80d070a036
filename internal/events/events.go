// Package events emits the engine's machine-readable progress records: one
// JSON object per line carrying an event code and an ordered parameter map.
// A supervising process renders or localizes them; the engine never does.
package events

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Code identifies a progress event.
type Code string

const (
	EngineStarted          Code = "ENGINE_STARTED"
	EngineStopped          Code = "ENGINE_STOPPED"
	ConfigIntervalAdjusted Code = "CONFIG_INTERVAL_ADJUSTED"

	CycleStarted   Code = "CYCLE_STARTED"
	CycleBusy      Code = "CYCLE_BUSY"
	CycleCompleted Code = "CYCLE_COMPLETED"
	CycleAborted   Code = "CYCLE_ABORTED"

	AssetsLoadFailed     Code = "ASSETS_LOAD_FAILED"
	StocksSkippedWeekend Code = "STOCKS_SKIPPED_WEEKEND"
	AssetChecking        Code = "ASSET_CHECKING"
	InsufficientData     Code = "INSUFFICIENT_DATA"
	BelowThreshold       Code = "BELOW_THRESHOLD"
	AlreadyAlerted       Code = "ALREADY_ALERTED"
	AlertFired           Code = "ALERT_FIRED"
	AssetFailed          Code = "ASSET_FAILED"

	HistorySaved      Code = "HISTORY_SAVED"
	HistorySaveFailed Code = "HISTORY_SAVE_FAILED"
	ActivityLogFailed Code = "ACTIVITY_LOG_FAILED"
	CacheLoadFailed   Code = "CACHE_LOAD_FAILED"
	CacheSaveFailed   Code = "CACHE_SAVE_FAILED"
	CachePurged       Code = "CACHE_PURGED"
	NotifySent        Code = "NOTIFY_SENT"
	NotifyFailed      Code = "NOTIFY_FAILED"
	NotifyDisabled    Code = "NOTIFY_DISABLED"
)

// Param is one named event parameter.
type Param struct {
	Key   string
	Value any
}

// P builds a Param.
func P(key string, value any) Param {
	return Param{Key: key, Value: value}
}

// Params is an ordered parameter mapping. It marshals to a JSON object
// whose keys appear in insertion order.
type Params []Param

// MarshalJSON implements json.Marshaler.
func (ps Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(paramValue(p.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key.
func (ps Params) Get(key string) (any, bool) {
	for _, p := range ps {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

func paramValue(v any) any {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}

// Record is a single progress event.
type Record struct {
	Code   Code   `json:"code"`
	Params Params `json:"params"`
}

// Emitter publishes progress records.
type Emitter interface {
	Emit(code Code, params ...Param)
}

// JSONEmitter writes records as JSON lines through zerolog.
type JSONEmitter struct {
	mu  sync.Mutex
	log zerolog.Logger
}

// NewJSONEmitter creates an emitter writing to w (normally stdout).
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Emit writes one record.
func (e *JSONEmitter) Emit(code Code, params ...Param) {
	raw, err := Params(params).MarshalJSON()
	if err != nil {
		raw = []byte(`{}`)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Log().Str("code", string(code)).RawJSON("params", raw).Msg("")
}

// Recorder keeps records in memory.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// Emit stores one record.
func (r *Recorder) Emit(code Code, params ...Param) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Code: code, Params: append(Params(nil), params...)})
}

// Records returns a copy of all stored records.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Codes returns the stored codes in emission order.
func (r *Recorder) Codes() []Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]Code, len(r.records))
	for i, rec := range r.records {
		codes[i] = rec.Code
	}
	return codes
}

// Count returns how many records carry code.
func (r *Recorder) Count(code Code) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Code == code {
			n++
		}
	}
	return n
}

// Nop discards every record.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Code, ...Param) {}
