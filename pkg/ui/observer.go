package ui

import (
	"fmt"
	"time"
)

// Message levels understood by every Observer
const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarn    = "WARN"
	LevelError   = "ERROR"
)

// Observer receives the progress of a download run. Methods may be called
// from several goroutines at once.
type Observer interface {
	RunStarted(username string, albums int)
	AlbumStarted(album string, index, total, items int)
	ItemFinished(album, file, status string, bytes int64, err error)
	AlbumFinished(album string, counts Counts)
	Message(level, format string, args ...interface{})
	RunFinished(counts Counts, elapsed time.Duration, err error)
}

// NopObserver discards every event; used with --quiet
type NopObserver struct{}

func (NopObserver) RunStarted(string, int)                            {}
func (NopObserver) AlbumStarted(string, int, int, int)                {}
func (NopObserver) ItemFinished(string, string, string, int64, error) {}
func (NopObserver) AlbumFinished(string, Counts)                      {}
func (NopObserver) Message(string, string, ...interface{})            {}
func (NopObserver) RunFinished(Counts, time.Duration, error)          {}

// Multi fans events out to several observers in order
func Multi(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) RunStarted(username string, albums int) {
	for _, o := range m {
		o.RunStarted(username, albums)
	}
}

func (m multiObserver) AlbumStarted(album string, index, total, items int) {
	for _, o := range m {
		o.AlbumStarted(album, index, total, items)
	}
}

func (m multiObserver) ItemFinished(album, file, status string, bytes int64, err error) {
	for _, o := range m {
		o.ItemFinished(album, file, status, bytes, err)
	}
}

func (m multiObserver) AlbumFinished(album string, counts Counts) {
	for _, o := range m {
		o.AlbumFinished(album, counts)
	}
}

func (m multiObserver) Message(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	for _, o := range m {
		o.Message(level, "%s", msg)
	}
}

func (m multiObserver) RunFinished(counts Counts, elapsed time.Duration, err error) {
	for _, o := range m {
		o.RunFinished(counts, elapsed, err)
	}
}
